package users_test

import (
	"context"
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func issueToken(t *testing.T, repo users.RepositoryManager, login, token string, kind users.TokenType, expireAt time.Time) {
	t.Helper()
	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().IssueTx(ctx, tx, login, token, kind, expireAt)
		return err
	})
	require.NoError(t, err)
}

func TestTokensConsumeOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedAccount(t, repo, "ada", false, users.RoleUser)
	issueToken(t, repo, "ada", "tok-1", users.TokenTypeActivation, time.Now().Add(time.Hour))

	var consumed *users.LifecycleToken
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		consumed, err = repo.Tokens().ConsumeTx(ctx, tx, "tok-1", users.TokenTypeActivation)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "ada", consumed.Login)
	assert.True(t, consumed.Consumed())

	// second consume fails closed
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeTx(ctx, tx, "tok-1", users.TokenTypeActivation)
		return err
	})
	assert.ErrorIs(t, err, users.ErrTokenExpiredOrConsumed)
}

func TestTokensConsumeUnknown(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeTx(ctx, tx, "nope", users.TokenTypeActivation)
		return err
	})
	assert.ErrorIs(t, err, users.ErrTokenExpiredOrConsumed)
}

func TestTokensConsumeExpired(t *testing.T) {
	repo := newTestRepo(t)

	seedAccount(t, repo, "ada", false, users.RoleUser)
	issueToken(t, repo, "ada", "tok-1", users.TokenTypeActivation, time.Now().Add(-time.Minute))

	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeTx(ctx, tx, "tok-1", users.TokenTypeActivation)
		return err
	})
	assert.ErrorIs(t, err, users.ErrTokenExpiredOrConsumed)
}

func TestTokensConsumeWrongKind(t *testing.T) {
	repo := newTestRepo(t)

	seedAccount(t, repo, "ada", true, users.RoleUser)
	issueToken(t, repo, "ada", "tok-1", users.TokenTypePasswordReset, time.Now().Add(time.Hour))

	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeTx(ctx, tx, "tok-1", users.TokenTypeActivation)
		return err
	})
	assert.ErrorIs(t, err, users.ErrTokenExpiredOrConsumed)
}

func TestTokensConsumeForLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// numeric codes are only unique per account, two accounts can hold the
	// same code
	seedAccount(t, repo, "ada", false, users.RoleUser)
	seedAccount(t, repo, "grace", false, users.RoleUser)
	issueToken(t, repo, "ada", "123456", users.TokenTypeActivation, time.Now().Add(time.Hour))
	issueToken(t, repo, "grace", "123456", users.TokenTypeActivation, time.Now().Add(time.Hour))

	var consumed *users.LifecycleToken
	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		consumed, err = repo.Tokens().ConsumeForLoginTx(ctx, tx, "ada", "123456", users.TokenTypeActivation)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "ada", consumed.Login)

	// grace's code is untouched
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		consumed, err = repo.Tokens().ConsumeForLoginTx(ctx, tx, "grace", "123456", users.TokenTypeActivation)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "grace", consumed.Login)
}

func TestTokensConsumeForLoginWrongLogin(t *testing.T) {
	repo := newTestRepo(t)

	seedAccount(t, repo, "ada", false, users.RoleUser)
	issueToken(t, repo, "ada", "123456", users.TokenTypeActivation, time.Now().Add(time.Hour))

	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeForLoginTx(ctx, tx, "grace", "123456", users.TokenTypeActivation)
		return err
	})
	assert.ErrorIs(t, err, users.ErrTokenExpiredOrConsumed)
}

func TestTokensDeleteForLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedAccount(t, repo, "ada", false, users.RoleUser)
	issueToken(t, repo, "ada", "tok-1", users.TokenTypeActivation, time.Now().Add(time.Hour))
	issueToken(t, repo, "ada", "tok-2", users.TokenTypePasswordReset, time.Now().Add(time.Hour))

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Tokens().DeleteForLoginTx(ctx, tx, "ada", users.TokenTypeActivation)
	})
	require.NoError(t, err)

	// the activation token is gone
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeTx(ctx, tx, "tok-1", users.TokenTypeActivation)
		return err
	})
	assert.ErrorIs(t, err, users.ErrTokenExpiredOrConsumed)

	// the reset token of the other kind survives
	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Tokens().ConsumeTx(ctx, tx, "tok-2", users.TokenTypePasswordReset)
		return err
	})
	assert.NoError(t, err)
}

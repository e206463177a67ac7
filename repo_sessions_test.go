package users_test

import (
	"context"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func createSession(t *testing.T, repo users.RepositoryManager, login, token string, expireAt time.Time) *users.RefreshSession {
	t.Helper()
	var session *users.RefreshSession
	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		session, err = repo.Sessions().CreateSessionTx(ctx, tx, login, token, expireAt)
		return err
	})
	require.NoError(t, err)
	return session
}

func TestSessionsCreateAndGetByToken(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedAccount(t, repo, "ada", true, users.RoleUser)
	expireAt := time.Now().Add(time.Hour)
	created := createSession(t, repo, "ada", "token-1", expireAt)

	assert.Equal(t, "ada", created.Login)
	assert.False(t, created.Revoked)

	got, err := repo.Sessions().GetByToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.Usable(time.Now()))
}

func TestSessionsGetByTokenNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Sessions().GetByToken(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, goerrors.IsNotFound(err))
}

func TestSessionsRevokeSingleWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedAccount(t, repo, "ada", true, users.RoleUser)
	createSession(t, repo, "ada", "token-1", time.Now().Add(time.Hour))

	won, err := repo.Sessions().Revoke(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, won)

	// second revoke loses the race
	won, err = repo.Sessions().Revoke(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, won)

	got, err := repo.Sessions().GetByToken(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
}

func TestSessionsRevokeUnknownToken(t *testing.T) {
	repo := newTestRepo(t)

	won, err := repo.Sessions().Revoke(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestSessionsRevokeAllForLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedAccount(t, repo, "ada", true, users.RoleUser)
	seedAccount(t, repo, "grace", true, users.RoleUser)

	expireAt := time.Now().Add(time.Hour)
	createSession(t, repo, "ada", "token-1", expireAt)
	createSession(t, repo, "ada", "token-2", expireAt)
	createSession(t, repo, "grace", "token-3", expireAt)

	n, err := repo.Sessions().RevokeAllForLogin(ctx, "ada")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	// grace's session survives
	got, err := repo.Sessions().GetByToken(ctx, "token-3")
	require.NoError(t, err)
	assert.False(t, got.Revoked)

	// already revoked rows do not count twice
	n, err = repo.Sessions().RevokeAllForLogin(ctx, "ada")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSessionsPurgeExpired(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedAccount(t, repo, "ada", true, users.RoleUser)

	createSession(t, repo, "ada", "stale", time.Now().Add(-time.Hour))
	createSession(t, repo, "ada", "live", time.Now().Add(time.Hour))

	n, err := repo.Sessions().PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.Sessions().GetByToken(ctx, "stale")
	assert.True(t, goerrors.IsNotFound(err))

	_, err = repo.Sessions().GetByToken(ctx, "live")
	assert.NoError(t, err)
}

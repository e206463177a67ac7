package users_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func createRole(t *testing.T, repo users.RepositoryManager, name string, order int) {
	t.Helper()
	err := repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.Roles().CreateTx(ctx, tx, &users.Role{Name: name, DisplayOrder: order})
		return err
	})
	require.NoError(t, err)
}

func TestRolesListOrder(t *testing.T) {
	repo := newTestRepo(t)

	createRole(t, repo, "zeta", 1)
	createRole(t, repo, "alpha", 2)
	createRole(t, repo, "beta", 2)

	roles, err := repo.Roles().List(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, 3)

	// display order first, name breaks ties
	assert.Equal(t, "zeta", roles[0].Name)
	assert.Equal(t, "alpha", roles[1].Name)
	assert.Equal(t, "beta", roles[2].Name)
}

func TestRolesGet(t *testing.T) {
	repo := newTestRepo(t)

	createRole(t, repo, "auditor", 5)

	role, err := repo.Roles().Get(context.Background(), "auditor")
	require.NoError(t, err)
	assert.Equal(t, 5, role.DisplayOrder)

	_, err = repo.Roles().Get(context.Background(), "nobody")
	assert.True(t, goerrors.IsNotFound(err))
}

func TestRolesDelete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createRole(t, repo, "auditor", 5)

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Roles().DeleteTx(ctx, tx, "auditor")
	})
	require.NoError(t, err)

	err = repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return repo.Roles().DeleteTx(ctx, tx, "auditor")
	})
	assert.True(t, goerrors.IsNotFound(err))
}

func TestRolesInUse(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createRole(t, repo, "auditor", 5)
	seedAccount(t, repo, "ada", true, "auditor")

	err := repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inUse, err := repo.Roles().InUseTx(ctx, tx, "auditor")
		require.NoError(t, err)
		assert.True(t, inUse)

		inUse, err = repo.Roles().InUseTx(ctx, tx, "orphan")
		require.NoError(t, err)
		assert.False(t, inUse)

		return nil
	})
	require.NoError(t, err)
}

package users_test

import (
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
			wantErr:  false,
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  true, // bcrypt can hash empty strings, we choose not to
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := users.HashPassword(tt.password)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, hash)
				return
			}

			assert.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)
		})
	}
}

func TestHashPasswordEmptyError(t *testing.T) {
	_, err := users.HashPassword("")
	assert.ErrorIs(t, err, users.ErrNoEmptyString)
}

func TestComparePasswordAndHash(t *testing.T) {
	password := "securePassword123!"
	hash, err := users.HashPassword(password)
	require.NoError(t, err)

	t.Run("Matching password", func(t *testing.T) {
		assert.NoError(t, users.ComparePasswordAndHash(password, hash))
	})

	t.Run("Wrong password", func(t *testing.T) {
		err := users.ComparePasswordAndHash("not-the-password", hash)
		assert.ErrorIs(t, err, users.ErrInvalidCredentials)
	})

	t.Run("Garbage hash", func(t *testing.T) {
		err := users.ComparePasswordAndHash(password, "not-a-bcrypt-hash")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, users.ErrInvalidCredentials)
	})
}

func TestRandomPasswordHash(t *testing.T) {
	h1 := users.RandomPasswordHash()
	h2 := users.RandomPasswordHash()

	assert.NotEmpty(t, h1)
	assert.NotEmpty(t, h2)
	assert.NotEqual(t, h1, h2)
}

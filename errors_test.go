package users_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
)

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, users.IsAuthFailure(users.ErrInvalidCredentials))
	assert.True(t, users.IsAuthFailure(users.ErrAccountInactive))
	assert.True(t, users.IsAuthFailure(users.ErrUnauthorized))
	assert.True(t, users.IsAuthFailure(users.ErrSessionRevokedOrExpired))
	assert.True(t, users.IsAuthFailure(users.ErrTokenExpired))

	assert.False(t, users.IsAuthFailure(nil))
	assert.False(t, users.IsAuthFailure(users.ErrAlreadyExists))
	assert.False(t, users.IsAuthFailure(users.ErrTokenExpiredOrConsumed))
	assert.False(t, users.IsAuthFailure(errors.New("plain error")))
}

func TestIsAuthFailureWrapped(t *testing.T) {
	wrapped := goerrors.Wrap(users.ErrInvalidCredentials, goerrors.CategoryAuth, "login failed")
	assert.True(t, users.IsAuthFailure(wrapped))
}

func TestIsTokenExpiredError(t *testing.T) {
	assert.True(t, users.IsTokenExpiredError(users.ErrTokenExpired))
	assert.True(t, users.IsTokenExpiredError(fmt.Errorf("jwt says token is expired")))

	assert.False(t, users.IsTokenExpiredError(nil))
	assert.False(t, users.IsTokenExpiredError(users.ErrTokenMalformed))
}

func TestIsMalformedError(t *testing.T) {
	assert.True(t, users.IsMalformedError(users.ErrTokenMalformed))
	assert.True(t, users.IsMalformedError(errors.New("missing or malformed JWT")))

	assert.False(t, users.IsMalformedError(nil))
	assert.False(t, users.IsMalformedError(users.ErrTokenExpired))
}

func TestErrorTextCodes(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{users.ErrInvalidCredentials, users.TextCodeInvalidCreds},
		{users.ErrAccountInactive, users.TextCodeAccountInactive},
		{users.ErrCreationDisabled, users.TextCodeCreationDisabled},
		{users.ErrAlreadyExists, users.TextCodeAlreadyExists},
		{users.ErrResetDisabled, users.TextCodeResetDisabled},
		{users.ErrTokenExpiredOrConsumed, users.TextCodeTokenConsumed},
		{users.ErrProtectedRole, users.TextCodeProtectedRole},
		{users.ErrUnauthorized, users.TextCodeUnauthorized},
		{users.ErrSessionRevokedOrExpired, users.TextCodeSessionRevoked},
		{users.ErrTooManyLoginAttempts, users.TextCodeTooManyAttempts},
	}

	for _, tt := range tests {
		var richErr *goerrors.Error
		assert.True(t, goerrors.As(tt.err, &richErr))
		assert.Equal(t, tt.code, richErr.TextCode)
	}
}

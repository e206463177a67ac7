package users_test

import (
	"testing"
	"time"

	users "github.com/goliatone/go-users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountSanitized(t *testing.T) {
	account := &users.Account{
		ID:           uuid.New(),
		Login:        "ada",
		Email:        "ada@example.com",
		PasswordHash: "$2a$14$something",
	}

	clean := account.Sanitized()
	require.NotNil(t, clean)
	assert.Empty(t, clean.PasswordHash)
	assert.Equal(t, account.Login, clean.Login)

	// original stays untouched
	assert.NotEmpty(t, account.PasswordHash)

	var nilAccount *users.Account
	assert.Nil(t, nilAccount.Sanitized())
}

func TestAccountAddMetadata(t *testing.T) {
	account := &users.Account{}
	account.AddMetadata("source", "import").AddMetadata("batch", 7)

	assert.Equal(t, "import", account.Metadata["source"])
	assert.Equal(t, 7, account.Metadata["batch"])
}

func TestNewIdentityFromAccount(t *testing.T) {
	id := uuid.New()
	account := &users.Account{
		ID:    id,
		Login: "ada",
		Email: "ada@example.com",
		Role:  users.RoleAdmin,
	}

	identity := users.NewIdentityFromAccount(account)
	require.NotNil(t, identity)
	assert.Equal(t, id.String(), identity.ID())
	assert.Equal(t, "ada", identity.Login())
	assert.Equal(t, "ada@example.com", identity.Email())
	assert.Equal(t, users.RoleAdmin, identity.Role())

	assert.Nil(t, users.NewIdentityFromAccount(nil))
}

func TestRefreshSessionExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name    string
		session *users.RefreshSession
		expired bool
	}{
		{name: "nil session", session: nil, expired: false},
		{name: "no expiry", session: &users.RefreshSession{}, expired: false},
		{name: "future expiry", session: &users.RefreshSession{ExpireAt: &future}, expired: false},
		{name: "past expiry", session: &users.RefreshSession{ExpireAt: &past}, expired: true},
		{name: "exact expiry", session: &users.RefreshSession{ExpireAt: &now}, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, tt.session.Expired(now))
		})
	}
}

func TestRefreshSessionUsable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	live := &users.RefreshSession{ExpireAt: &future}
	assert.True(t, live.Usable(now))

	revoked := &users.RefreshSession{ExpireAt: &future, Revoked: true}
	assert.False(t, revoked.Usable(now))

	expired := &users.RefreshSession{ExpireAt: &past}
	assert.False(t, expired.Usable(now))

	var nilSession *users.RefreshSession
	assert.False(t, nilSession.Usable(now))
}

func TestLifecycleTokenConsumedAndExpired(t *testing.T) {
	now := time.Now()
	usedAt := now.Add(-time.Minute)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	fresh := &users.LifecycleToken{ExpireAt: &future}
	assert.False(t, fresh.Consumed())
	assert.False(t, fresh.Expired(now))

	used := &users.LifecycleToken{ExpireAt: &future, UsedAt: &usedAt}
	assert.True(t, used.Consumed())

	expired := &users.LifecycleToken{ExpireAt: &past}
	assert.True(t, expired.Expired(now))

	var nilToken *users.LifecycleToken
	assert.False(t, nilToken.Consumed())
	assert.False(t, nilToken.Expired(now))
}

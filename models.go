package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the credential-store model. The login is the stable identifier
// referenced by sessions and lifecycle tokens; it never changes after
// creation.
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Login          string         `bun:"login,notnull,unique" json:"login,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Role           string         `bun:"role,notnull" json:"role,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	Active         bool           `bun:"active" json:"active"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	LoginAttempts  int            `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time     `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Sanitized returns a copy safe to hand to API clients: the password hash is
// stripped.
func (a *Account) Sanitized() *Account {
	if a == nil {
		return nil
	}
	out := *a
	out.PasswordHash = ""
	return &out
}

// AddMetadata will append information to a metadata attribute.
func (a *Account) AddMetadata(key string, val any) *Account {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = val
	return a
}

// accountIdentity adapts an Account into the Identity interface for token
// generation.
type accountIdentity struct {
	id    string
	login string
	email string
	role  string
}

// NewIdentityFromAccount returns an Identity adapter for the provided account.
func NewIdentityFromAccount(account *Account) Identity {
	if account == nil {
		return nil
	}
	return accountIdentity{
		id:    account.ID.String(),
		login: account.Login,
		email: account.Email,
		role:  account.Role,
	}
}

func (a accountIdentity) ID() string    { return a.id }
func (a accountIdentity) Login() string { return a.login }
func (a accountIdentity) Email() string { return a.email }
func (a accountIdentity) Role() string  { return a.role }

var _ Identity = accountIdentity{}

// RefreshSession is a single long-lived refresh credential. Rotation marks the
// presented row revoked and inserts a fresh one; rows are kept around so a
// replayed token is observed as revoked instead of unknown.
type RefreshSession struct {
	bun.BaseModel `bun:"table:refresh_sessions,alias:rsn"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Login         string     `bun:"login,notnull" json:"login,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	Revoked       bool       `bun:"revoked" json:"revoked"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	ExpireAt      *time.Time `bun:"expire_at" json:"expire_at,omitempty"`
}

// Expired reports whether the session is past its expiry at the given instant.
// A session without expiry never expires.
func (s *RefreshSession) Expired(now time.Time) bool {
	if s == nil || s.ExpireAt == nil {
		return false
	}
	return !s.ExpireAt.After(now)
}

// Usable reports whether the session may still be presented for refresh.
func (s *RefreshSession) Usable(now time.Time) bool {
	return s != nil && !s.Revoked && !s.Expired(now)
}

// TokenType discriminates lifecycle tokens.
type TokenType = string

const (
	// TokenTypeActivation marks tokens issued on inactive account creation.
	TokenTypeActivation TokenType = "activation"
	// TokenTypePasswordReset marks tokens issued on reset request.
	TokenTypePasswordReset TokenType = "password_reset"
)

// ActivationTokenType values for Settings.ActivationTokenType.
const (
	ActivationTokenUUID = "uuid"
	ActivationTokenCode = "code"
)

// LifecycleToken is a single-use activation or password-reset token. Once
// UsedAt is set the row never satisfies a consumption predicate again.
type LifecycleToken struct {
	bun.BaseModel `bun:"table:lifecycle_tokens,alias:ltk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Type          TokenType  `bun:"type,notnull" json:"type,omitempty"`
	Token         string     `bun:"token,notnull" json:"-"`
	Login         string     `bun:"login,notnull" json:"login,omitempty"`
	ExpireAt      *time.Time `bun:"expire_at" json:"expire_at,omitempty"`
	UsedAt        *time.Time `bun:"used_at" json:"used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Consumed reports whether the token has already been used.
func (t *LifecycleToken) Consumed() bool {
	return t != nil && t.UsedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *LifecycleToken) Expired(now time.Time) bool {
	if t == nil || t.ExpireAt == nil {
		return false
	}
	return !t.ExpireAt.After(now)
}

// Role maps a logical role name to a display position. Creating a custom role
// provisions a native principal; the four built-ins are protected.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	Name          string `bun:"role,pk" json:"role"`
	DisplayOrder  int    `bun:"display_order" json:"display_order"`
}

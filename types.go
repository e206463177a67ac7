package users

import (
	"context"
	"fmt"
	"time"
)

// Logger is the minimal logging surface every component accepts. The default
// implementation writes to stdout; callers plug their own via WithLogger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account that end up in
// access token claims.
type Identity interface {
	ID() string
	Login() string
	Email() string
	Role() string
}

// Config holds engine options that do not live in the tenant settings row:
// signing material, token audience/issuer, and cookie scoping.
type Config interface {
	GetTenant() string
	GetSigningKey() []byte
	GetSigningMethod() string
	GetIssuer() string
	GetAudience() []string
	GetCookieDomain() string
	GetContextKey() string
}

// TokenService signs and validates access tokens.
type TokenService interface {
	Generate(identity Identity, ttl time.Duration) (string, time.Time, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// SettingsProvider reads the tenant settings row. Implementations must return
// a normalized snapshot with every TTL defaulted.
type SettingsProvider interface {
	Get(ctx context.Context) (*Settings, error)
}

// RoleProvisioner creates and drops the native storage-engine principals that
// back logical roles. The authz package provides the Postgres implementation.
type RoleProvisioner interface {
	ProvisionRole(ctx context.Context, role string) error
	DeprovisionRole(ctx context.Context, role string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] USERS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] USERS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] USERS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] USERS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

package users

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients alongside structured errors.
const (
	TextCodeInvalidCreds     = "INVALID_CREDENTIALS"
	TextCodeAccountInactive  = "ACCOUNT_INACTIVE"
	TextCodeCreationDisabled = "CREATION_DISABLED"
	TextCodeAlreadyExists    = "ALREADY_EXISTS"
	TextCodeResetDisabled    = "RESET_DISABLED"
	TextCodeTokenConsumed    = "TOKEN_EXPIRED_OR_CONSUMED"
	TextCodeProtectedRole    = "PROTECTED_ROLE"
	TextCodeUnauthorized     = "UNAUTHORIZED"
	TextCodeSessionRevoked   = "SESSION_REVOKED_OR_EXPIRED"
	TextCodeTooManyAttempts  = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeTokenExpired     = "TOKEN_EXPIRED"
	TextCodeTokenMalformed   = "TOKEN_MALFORMED"
	TextCodeEmptyPassword    = "EMPTY_PASSWORD"
)

// ErrInvalidCredentials is returned when a login/password pair does not match
// a stored credential. It carries no detail about which half failed.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountInactive is returned when credentials match but the account has
// not been activated yet (or has been deactivated since).
var ErrAccountInactive = errors.New("account is not active", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeUnauthorized)

// ErrCreationDisabled is returned when public account creation is switched off
// in the tenant settings. Operator facing, safe to surface verbatim.
var ErrCreationDisabled = errors.New("public account creation is disabled", errors.CategoryOperation).
	WithTextCode(TextCodeCreationDisabled).
	WithCode(errors.CodeForbidden)

// ErrAlreadyExists is returned when a registration collides with an existing
// login or email that is not eligible for inactive re-registration.
var ErrAlreadyExists = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyExists).
	WithCode(errors.CodeConflict)

// ErrResetDisabled is returned when password reset is switched off in the
// tenant settings.
var ErrResetDisabled = errors.New("password reset is disabled", errors.CategoryOperation).
	WithTextCode(TextCodeResetDisabled).
	WithCode(errors.CodeForbidden)

// ErrTokenExpiredOrConsumed is returned when a lifecycle token lookup matches
// no live row: unknown, expired, and already-used tokens are indistinguishable.
var ErrTokenExpiredOrConsumed = errors.New("token is expired, consumed, or unknown", errors.CategoryValidation).
	WithTextCode(TextCodeTokenConsumed).
	WithCode(errors.CodeBadRequest)

// ErrProtectedRole is returned when attempting to delete or deprovision one of
// the built-in roles.
var ErrProtectedRole = errors.New("built-in roles cannot be removed", errors.CategoryConflict).
	WithTextCode(TextCodeProtectedRole).
	WithCode(errors.CodeConflict)

// ErrUnauthorized is returned when a request carries no valid access token or
// the token's role does not cover the operation.
var ErrUnauthorized = errors.New("missing or invalid access token", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrSessionRevokedOrExpired is returned on refresh/logout when the presented
// refresh token is unknown, revoked, or past its expiry.
var ErrSessionRevokedOrExpired = errors.New("refresh session is revoked or expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned when an account is inside its login
// attempt cooldown window.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrTokenExpired is returned for access tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for access tokens that fail to parse or verify.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrAccountNotFound is the error we return for accounts we cannot resolve.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// IsAuthFailure reports whether err belongs to the class of failures that must
// surface as a bare 401 with no additional detail.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryAuth ||
			richErr.Category == errors.CategoryAuthz
	}

	return false
}

// IsTokenExpiredError will check for expired tokens, including errors coming
// from the underlying JWT library before they are wrapped.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for parse/verification failures by message so we
// also catch errors raised by transport middleware.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

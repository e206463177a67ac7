package users

import (
	"time"

	"github.com/uptrace/bun"
)

// Defaults applied when the settings row leaves a TTL or policy unset.
const (
	DefaultAccessTokenTTL     = 180 * time.Minute
	DefaultRefreshTokenTTL    = 3 * 24 * time.Hour
	DefaultActivationTokenTTL = 180 * time.Minute
	DefaultResetTokenTTL      = 180 * time.Minute
	DefaultActivationCodeLen  = 6
	DefaultCreationRole       = RoleUser
)

// Settings is the singleton per-tenant policy row. It is read on every
// lifecycle/session operation and mutated only by the admin surface.
type Settings struct {
	bun.BaseModel `bun:"table:settings,alias:set"`

	ID                           int    `bun:"id,pk" json:"id"`
	PublicCreation               bool   `bun:"public_creation" json:"public_creation"`
	RoleOnPublicCreation         string `bun:"role_on_public_creation" json:"role_on_public_creation,omitempty"`
	ActiveOnCreation             bool   `bun:"active_on_creation" json:"active_on_creation"`
	AllowResetPassword           bool   `bun:"allow_reset_password" json:"allow_reset_password"`
	MessageTemplateActivation    string `bun:"message_template_activation" json:"message_template_activation,omitempty"`
	MessageTemplatePasswordReset string `bun:"message_template_password_reset" json:"message_template_password_reset,omitempty"`
	AccessTokenTTLMinutes        int    `bun:"access_token_ttl_minutes" json:"access_token_ttl_minutes,omitempty"`
	RefreshTokenTTLMinutes       int    `bun:"refresh_token_ttl_minutes" json:"refresh_token_ttl_minutes,omitempty"`
	ActivationTokenTTLMinutes    int    `bun:"activation_token_ttl_minutes" json:"activation_token_ttl_minutes,omitempty"`
	ActivationTokenType          string `bun:"activation_token_type" json:"activation_token_type,omitempty"`
	ActivationTokenLength        int    `bun:"activation_token_length" json:"activation_token_length,omitempty"`
	ResetPasswordTokenTTLMinutes int    `bun:"reset_password_token_ttl_minutes" json:"reset_password_token_ttl_minutes,omitempty"`
}

// DefaultSettings returns the policy applied when no settings row exists:
// everything locked down, every TTL defaulted.
func DefaultSettings() *Settings {
	return &Settings{ID: 1}
}

// AccessTokenTTL returns the configured access token lifetime or the default.
func (s *Settings) AccessTokenTTL() time.Duration {
	if s == nil || s.AccessTokenTTLMinutes <= 0 {
		return DefaultAccessTokenTTL
	}
	return time.Duration(s.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime or the default.
func (s *Settings) RefreshTokenTTL() time.Duration {
	if s == nil || s.RefreshTokenTTLMinutes <= 0 {
		return DefaultRefreshTokenTTL
	}
	return time.Duration(s.RefreshTokenTTLMinutes) * time.Minute
}

// ActivationTokenTTL returns the configured activation token lifetime or the
// default.
func (s *Settings) ActivationTokenTTL() time.Duration {
	if s == nil || s.ActivationTokenTTLMinutes <= 0 {
		return DefaultActivationTokenTTL
	}
	return time.Duration(s.ActivationTokenTTLMinutes) * time.Minute
}

// ResetTokenTTL returns the configured reset token lifetime or the default.
func (s *Settings) ResetTokenTTL() time.Duration {
	if s == nil || s.ResetPasswordTokenTTLMinutes <= 0 {
		return DefaultResetTokenTTL
	}
	return time.Duration(s.ResetPasswordTokenTTLMinutes) * time.Minute
}

// TokenKind returns the activation token flavor, defaulting to opaque uuid.
func (s *Settings) TokenKind() string {
	if s == nil || s.ActivationTokenType != ActivationTokenCode {
		return ActivationTokenUUID
	}
	return ActivationTokenCode
}

// CodeLength returns the numeric code length for code-type activation.
func (s *Settings) CodeLength() int {
	if s == nil || s.ActivationTokenLength <= 0 {
		return DefaultActivationCodeLen
	}
	return s.ActivationTokenLength
}

// CreationRole returns the role applied to publicly created accounts.
func (s *Settings) CreationRole() string {
	if s == nil || s.RoleOnPublicCreation == "" {
		return DefaultCreationRole
	}
	return s.RoleOnPublicCreation
}

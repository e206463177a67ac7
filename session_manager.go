package users

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Default login throttling: after this many consecutive failures the account
// sits out the cooldown window.
const (
	DefaultMaxLoginAttempts = 5
	DefaultLoginCooldown    = "15m"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	Account          *Account  `json:"account,omitempty"`
}

// SessionManager drives the session lifecycle: credential verification,
// access token minting, refresh rotation, and revocation.
type SessionManager struct {
	repo             RepositoryManager
	tokenService     TokenService
	tokenValidator   TokenValidator
	settings         SettingsProvider
	logger           Logger
	activitySink     ActivitySink
	maxLoginAttempts int
	loginCooldown    string
}

// NewSessionManager wires a SessionManager over the repository manager and
// token service.
func NewSessionManager(repo RepositoryManager, tokenService TokenService) *SessionManager {
	return &SessionManager{
		repo:             repo,
		tokenService:     tokenService,
		settings:         repo.Settings(),
		logger:           defLogger{},
		activitySink:     noopActivitySink{},
		maxLoginAttempts: DefaultMaxLoginAttempts,
		loginCooldown:    DefaultLoginCooldown,
	}
}

func (s *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting session events.
func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *SessionManager) WithTokenValidator(validator TokenValidator) *SessionManager {
	s.tokenValidator = validator
	return s
}

// WithLoginThrottle overrides the attempt ceiling and cooldown expression.
func (s *SessionManager) WithLoginThrottle(maxAttempts int, cooldown string) *SessionManager {
	if maxAttempts > 0 {
		s.maxLoginAttempts = maxAttempts
	}
	if cooldown != "" {
		s.loginCooldown = cooldown
	}
	return s
}

// TokenService returns the TokenService instance used by this manager
func (s *SessionManager) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credential pair and opens a new session. Credential
// failures are indistinguishable from unknown logins.
func (s *SessionManager) Login(ctx context.Context, login, password string) (*TokenPair, error) {
	account, err := s.repo.Accounts().GetByLogin(ctx, login)
	if err != nil {
		if errors.IsNotFound(err) {
			s.emitEvent(ctx, ActivityEventLoginFailure, login, map[string]any{
				"reason": "unknown_login",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if s.isThrottled(account) {
		s.emitEvent(ctx, ActivityEventLoginThrottled, login, map[string]any{
			"attempts": account.LoginAttempts,
		})
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if trackErr := s.repo.Accounts().TrackAttemptedLogin(ctx, account); trackErr != nil {
			s.logger.Error("Login failed to track attempt: %s", trackErr)
		}
		s.emitEvent(ctx, ActivityEventLoginFailure, login, map[string]any{
			"reason": "bad_password",
		})
		return nil, ErrInvalidCredentials
	}

	if !account.Active {
		s.emitEvent(ctx, ActivityEventLoginFailure, login, map[string]any{
			"reason": "inactive",
		})
		return nil, ErrAccountInactive
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		s.logger.Warn("Login settings lookup failed, using defaults: %s", err)
		cfg = DefaultSettings()
	}

	pair, err := s.issueSession(ctx, account, cfg)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Accounts().TrackSuccessfulLogin(ctx, account); err != nil {
		s.logger.Error("Login failed to track success: %s", err)
	}

	s.emitEvent(ctx, ActivityEventLoginSuccess, login, nil)

	return pair, nil
}

// Refresh rotates the presented refresh token. Exactly one concurrent caller
// wins the rotation; the losers, and any later replay of the spent token,
// trigger a full revocation of the account's sessions.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session, err := s.repo.Sessions().GetByTokenTx(ctx, tx, refreshToken)
		if err != nil {
			if errors.IsNotFound(err) {
				return ErrSessionRevokedOrExpired
			}
			return err
		}

		if session.Expired(time.Now()) {
			return ErrSessionRevokedOrExpired
		}

		won, err := s.repo.Sessions().RevokeTx(ctx, tx, refreshToken)
		if err != nil {
			return err
		}

		if !won {
			// The token was already spent. Someone is replaying it, so
			// every session for this account gets cut.
			if _, err := s.repo.Sessions().RevokeAllForLoginTx(ctx, tx, session.Login); err != nil {
				return err
			}
			s.emitEvent(ctx, ActivityEventSessionReplay, session.Login, map[string]any{
				"session_id": session.ID.String(),
			})
			return ErrSessionRevokedOrExpired
		}

		account, err := s.repo.Accounts().GetByLoginTx(ctx, tx, session.Login)
		if err != nil {
			if errors.IsNotFound(err) {
				return ErrSessionRevokedOrExpired
			}
			return err
		}

		if !account.Active {
			return ErrAccountInactive
		}

		cfg, err := s.repo.Settings().GetTx(ctx, tx)
		if err != nil {
			s.logger.Warn("Refresh settings lookup failed, using defaults: %s", err)
			cfg = DefaultSettings()
		}

		pair, err = s.issueSessionTx(ctx, tx, account, cfg)
		return err
	})

	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, ActivityEventSessionRefreshed, pair.Account.Login, nil)

	return pair, nil
}

// Logout revokes the presented refresh token. Revoking a token that is
// already spent or unknown is not an error.
func (s *SessionManager) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.repo.Sessions().GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}

	won, err := s.repo.Sessions().Revoke(ctx, refreshToken)
	if err != nil {
		return err
	}

	if won {
		s.emitEvent(ctx, ActivityEventSessionRevoked, session.Login, nil)
	}

	return nil
}

// LogoutAll revokes every open session for the login.
func (s *SessionManager) LogoutAll(ctx context.Context, login string) (int64, error) {
	n, err := s.repo.Sessions().RevokeAllForLogin(ctx, login)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.emitEvent(ctx, ActivityEventSessionRevoked, login, map[string]any{
			"revoked": n,
		})
	}
	return n, nil
}

// Validate parses and checks an access token, preferring the configured
// validator chain when present.
func (s *SessionManager) Validate(tokenString string) (AuthClaims, error) {
	if s.tokenValidator != nil {
		return s.tokenValidator.Validate(tokenString)
	}
	return s.tokenService.Validate(tokenString)
}

// CurrentAccount resolves the account behind a validated access token.
func (s *SessionManager) CurrentAccount(ctx context.Context, claims AuthClaims) (*Account, error) {
	if claims == nil {
		return nil, ErrUnauthorized
	}

	account, err := s.repo.Accounts().GetByLogin(ctx, claims.Login())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	return account, nil
}

func (s *SessionManager) issueSession(ctx context.Context, account *Account, cfg *Settings) (*TokenPair, error) {
	var pair *TokenPair
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		pair, err = s.issueSessionTx(ctx, tx, account, cfg)
		return err
	})
	return pair, err
}

func (s *SessionManager) issueSessionTx(ctx context.Context, tx bun.IDB, account *Account, cfg *Settings) (*TokenPair, error) {
	access, accessExpires, err := s.tokenService.Generate(NewIdentityFromAccount(account), cfg.AccessTokenTTL())
	if err != nil {
		return nil, err
	}

	refresh, err := GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	refreshExpires := time.Now().Add(cfg.RefreshTokenTTL())
	if _, err := s.repo.Sessions().CreateSessionTx(ctx, tx, account.Login, refresh, refreshExpires); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpires,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpires,
		Account:          account.Sanitized(),
	}, nil
}

func (s *SessionManager) isThrottled(account *Account) bool {
	if account.LoginAttempts < s.maxLoginAttempts || account.LoginAttemptAt == nil {
		return false
	}

	within, err := IsWithinThresholdPeriod(*account.LoginAttemptAt, s.loginCooldown)
	if err != nil {
		s.logger.Error("Login invalid cooldown expression %q: %s", s.loginCooldown, err)
		return false
	}

	return within
}

func (s *SessionManager) emitEvent(ctx context.Context, kind ActivityEventType, login string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  kind,
		Login:      login,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Error("failed to record activity event %s: %s", kind, err)
	}
}

package users

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users/authz"
	"github.com/uptrace/bun"
)

// AuthzEngine is the surface the service needs from the authorization
// engine. *authz.Engine satisfies it.
type AuthzEngine interface {
	RoleProvisioner

	SetPermissions(ctx context.Context, role, table string, privileges ...authz.Privilege) error
	RemovePermissions(ctx context.Context, role, table string, privileges ...authz.Privilege) error
	ListPermissions(ctx context.Context, roles ...string) ([]authz.Grant, error)

	EnableRowSecurity(ctx context.Context, table string) error
	DisableRowSecurity(ctx context.Context, table string) error
	AddPolicy(ctx context.Context, name, table, role, condition string) error
	RemovePolicy(ctx context.Context, name, table string) error
	ListPolicies(ctx context.Context, table string) ([]authz.Policy, error)
}

var _ AuthzEngine = (*authz.Engine)(nil)

// Service is the single entry point over the account, session, and
// authorization surfaces. Admin operations check the caller's claims before
// touching anything.
type Service struct {
	repo         RepositoryManager
	sessions     *SessionManager
	engine       AuthzEngine
	notifier     Notifier
	renderer     *MessageRenderer
	activitySink ActivitySink
	logger       Logger
}

// NewService wires a Service. The authz engine is optional; without it the
// role, permission, and policy operations return an internal error.
func NewService(repo RepositoryManager, sessions *SessionManager) *Service {
	return &Service{
		repo:         repo,
		sessions:     sessions,
		notifier:     noopNotifier{},
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}
}

func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) WithAuthzEngine(engine AuthzEngine) *Service {
	s.engine = engine
	return s
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = normalizeNotifier(n)
	return s
}

func (s *Service) WithRenderer(r *MessageRenderer) *Service {
	s.renderer = r
	return s
}

// WithActivitySink configures an ActivitySink for emitting audit events.
func (s *Service) WithActivitySink(sink ActivitySink) *Service {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Sessions exposes the session manager for transports that need it directly.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// CreateUser registers a new account. Public callers are subject to the
// public creation switch; pass admin claims to create accounts regardless.
func (s *Service) CreateUser(ctx context.Context, actor AuthClaims, msg RegisterAccountMessage) (*RegisterAccountResponse, error) {
	msg.Elevated = actor != nil && actor.IsAtLeast(RoleAdmin)

	var resp *RegisterAccountResponse
	msg.OnResponse = func(r *RegisterAccountResponse) { resp = r }

	handler := NewRegisterAccountHandler(s.repo).
		WithNotifier(s.notifier).
		WithRenderer(s.renderer).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger)

	if err := handler.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return resp, nil
}

// AuthenticateUser verifies credentials and opens a session.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (*TokenPair, error) {
	return s.sessions.Login(ctx, login, password)
}

// RefreshToken rotates a refresh token into a fresh pair.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.sessions.Refresh(ctx, refreshToken)
}

// LogoutUser revokes the presented refresh token.
func (s *Service) LogoutUser(ctx context.Context, refreshToken string) error {
	return s.sessions.Logout(ctx, refreshToken)
}

// ActivateUser consumes an opaque activation token.
func (s *Service) ActivateUser(ctx context.Context, token string) (*Account, error) {
	return s.activate(ctx, ActivateAccountMessage{Token: token})
}

// ActivateUserByCode consumes a numeric activation code scoped to a login.
func (s *Service) ActivateUserByCode(ctx context.Context, login, code string) (*Account, error) {
	return s.activate(ctx, ActivateAccountMessage{Token: code, Login: login})
}

func (s *Service) activate(ctx context.Context, msg ActivateAccountMessage) (*Account, error) {
	var resp *ActivateAccountResponse
	msg.OnResponse = func(r *ActivateAccountResponse) { resp = r }

	handler := NewActivateAccountHandler(s.repo).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger)

	if err := handler.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return resp.Account, nil
}

// RequestPasswordReset issues a reset token for the active account behind the
// email. The response is identical for known and unknown emails.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	handler := NewInitializePasswordResetHandler(s.repo).
		WithNotifier(s.notifier).
		WithRenderer(s.renderer).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger)

	return handler.Execute(ctx, InitializePasswordResetMessage{Email: email})
}

// ResetPassword consumes a reset token and installs the new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	handler := NewFinalizePasswordResetHandler(s.repo).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger)

	return handler.Execute(ctx, FinalizePasswordResetMessage{Token: token, Password: password})
}

// ChangePassword verifies the current password before installing a new one.
func (s *Service) ChangePassword(ctx context.Context, actor AuthClaims, currentPassword, newPassword string) error {
	if actor == nil {
		return ErrUnauthorized
	}

	handler := NewChangePasswordHandler(s.repo).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger)

	return handler.Execute(ctx, ChangePasswordMessage{
		Login:           actor.Login(),
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
}

// GetCurrentUser resolves the account behind validated claims.
func (s *Service) GetCurrentUser(ctx context.Context, actor AuthClaims) (*Account, error) {
	account, err := s.sessions.CurrentAccount(ctx, actor)
	if err != nil {
		return nil, err
	}
	return account.Sanitized(), nil
}

// UpdateCurrentUser applies a profile patch to the caller's own account.
func (s *Service) UpdateCurrentUser(ctx context.Context, actor AuthClaims, patch ProfilePatch) (*Account, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}

	var resp *UpdateProfileResponse
	msg := UpdateProfileMessage{
		Login: actor.Login(),
		Patch: patch,
		OnResponse: func(r *UpdateProfileResponse) {
			resp = r
		},
	}

	handler := NewUpdateProfileHandler(s.repo).
		WithActivitySink(s.activitySink).
		WithLogger(s.logger)

	if err := handler.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return resp.Account.Sanitized(), nil
}

// ListRoles returns the logical roles in display order.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.repo.Roles().List(ctx)
}

// CreateRole registers a logical role and provisions its native principal in
// a single operation.
func (s *Service) CreateRole(ctx context.Context, actor AuthClaims, role *Role) (*Role, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}

	var created *Role
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		created, err = s.repo.Roles().CreateTx(ctx, tx, role)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create role")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Role DDL runs on its own connection, so provisioning happens after the
	// row commits and the row is rolled back by hand if it fails.
	if err := engine.ProvisionRole(ctx, role.Name); err != nil {
		if cleanupErr := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return s.repo.Roles().DeleteTx(ctx, tx, role.Name)
		}); cleanupErr != nil {
			s.logger.Error("failed to roll back role row %s: %s", role.Name, cleanupErr)
		}
		return nil, err
	}

	s.emitAuthzEvent(ctx, ActivityEventRoleProvisioned, actor, map[string]any{"role": role.Name})
	return created, nil
}

// DeleteRole removes a logical role and drops its native principal. Built-in
// roles and roles still assigned to accounts are protected.
func (s *Service) DeleteRole(ctx context.Context, actor AuthClaims, name string) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}

	if IsBuiltinRole(name) {
		return ErrProtectedRole
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inUse, err := s.repo.Roles().InUseTx(ctx, tx, name)
		if err != nil {
			return err
		}
		if inUse {
			return goerrors.New("role is still assigned to accounts", goerrors.CategoryConflict).
				WithMetadata(map[string]any{"role": name})
		}

		return s.repo.Roles().DeleteTx(ctx, tx, name)
	})
	if err != nil {
		return err
	}

	if err := engine.DeprovisionRole(ctx, name); err != nil {
		return err
	}

	s.emitAuthzEvent(ctx, ActivityEventRoleDeprovisioned, actor, map[string]any{"role": name})
	return nil
}

// ListPermissions returns the grant matrix for the given roles, defaulting to
// every known role.
func (s *Service) ListPermissions(ctx context.Context, actor AuthClaims, roleNames ...string) ([]authz.Grant, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}

	if len(roleNames) == 0 {
		roles, err := s.repo.Roles().List(ctx)
		if err != nil {
			return nil, err
		}
		for _, role := range roles {
			roleNames = append(roleNames, role.Name)
		}
	}

	return engine.ListPermissions(ctx, roleNames...)
}

// SetPermissions grants table privileges to a role.
func (s *Service) SetPermissions(ctx context.Context, actor AuthClaims, role, table string, privileges ...authz.Privilege) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}

	if err := engine.SetPermissions(ctx, role, table, privileges...); err != nil {
		return err
	}

	s.emitAuthzEvent(ctx, ActivityEventGrantsChanged, actor, map[string]any{
		"role":  role,
		"table": table,
	})
	return nil
}

// RemovePermissions revokes table privileges from a role.
func (s *Service) RemovePermissions(ctx context.Context, actor AuthClaims, role, table string, privileges ...authz.Privilege) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}

	if err := engine.RemovePermissions(ctx, role, table, privileges...); err != nil {
		return err
	}

	s.emitAuthzEvent(ctx, ActivityEventGrantsChanged, actor, map[string]any{
		"role":  role,
		"table": table,
	})
	return nil
}

// ListPolicies returns the row security policies for a table, or all tables
// when the name is empty.
func (s *Service) ListPolicies(ctx context.Context, actor AuthClaims, table string) ([]authz.Policy, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return nil, err
	}
	return engine.ListPolicies(ctx, table)
}

// AddPolicy creates a row security policy. The condition passes through to
// the database verbatim, which is why this is an admin operation.
func (s *Service) AddPolicy(ctx context.Context, actor AuthClaims, name, table, role, condition string) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}

	if err := engine.AddPolicy(ctx, name, table, role, condition); err != nil {
		return err
	}

	s.emitAuthzEvent(ctx, ActivityEventPolicyChanged, actor, map[string]any{
		"policy": name,
		"table":  table,
	})
	return nil
}

// RemovePolicy drops a row security policy.
func (s *Service) RemovePolicy(ctx context.Context, actor AuthClaims, name, table string) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}

	if err := engine.RemovePolicy(ctx, name, table); err != nil {
		return err
	}

	s.emitAuthzEvent(ctx, ActivityEventPolicyChanged, actor, map[string]any{
		"policy": name,
		"table":  table,
	})
	return nil
}

// EnableRowSecurity enforces policies on a table.
func (s *Service) EnableRowSecurity(ctx context.Context, actor AuthClaims, table string) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}
	return engine.EnableRowSecurity(ctx, table)
}

// DisableRowSecurity stops enforcing policies on a table.
func (s *Service) DisableRowSecurity(ctx context.Context, actor AuthClaims, table string) error {
	if err := s.requireAdmin(actor); err != nil {
		return err
	}
	engine, err := s.requireEngine()
	if err != nil {
		return err
	}
	return engine.DisableRowSecurity(ctx, table)
}

// GetSettings returns the tenant settings row with defaults applied.
func (s *Service) GetSettings(ctx context.Context, actor AuthClaims) (*Settings, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.Settings().Get(ctx)
}

// UpdateSettings replaces the tenant settings row.
func (s *Service) UpdateSettings(ctx context.Context, actor AuthClaims, settings *Settings) (*Settings, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.Settings().Upsert(ctx, settings)
}

func (s *Service) requireAdmin(actor AuthClaims) error {
	if actor == nil || !actor.IsAtLeast(RoleAdmin) {
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) requireEngine() (AuthzEngine, error) {
	if s.engine == nil {
		return nil, goerrors.New("authorization engine is not configured", goerrors.CategoryInternal)
	}
	return s.engine, nil
}

func (s *Service) emitAuthzEvent(ctx context.Context, kind ActivityEventType, actor AuthClaims, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  kind,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if actor != nil {
		event.Actor = actor.Login()
	}
	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Error("failed to record %s event: %s", kind, err)
	}
}

// Package authz manages native Postgres principals, table grants, and row
// level security policies for logical roles. Role names are namespaced per
// tenant so multiple deployments can share one database cluster.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Reserved role names shared across tenants.
const (
	// RoleAnonymous is the unauthenticated principal. It is never namespaced
	// so a single anonymous principal serves every tenant.
	RoleAnonymous = "anonymous"
)

// protectedRoles can never be dropped.
var protectedRoles = map[string]struct{}{
	"anonymous": {},
	"readonly":  {},
	"user":      {},
	"admin":     {},
}

// ErrProtectedRole is returned when attempting to drop a built-in role.
var ErrProtectedRole = errors.New("built-in roles cannot be removed", errors.CategoryConflict).
	WithTextCode("PROTECTED_ROLE").
	WithCode(errors.CodeConflict)

const (
	pgErrDuplicateObject  = "42710"
	pgErrUndefinedObject  = "42704"
	pgErrDependentObjects = "2BP01"
)

// Logger is the minimal logging surface the engine needs.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Engine executes grant and policy statements against a Postgres database.
// Identifiers are validated and quoted before interpolation since DDL cannot
// take bind parameters.
type Engine struct {
	db     *bun.DB
	tenant string
	logger Logger
}

// New returns an Engine scoped to the given tenant.
func New(db *bun.DB, tenant string) *Engine {
	return &Engine{
		db:     db,
		tenant: tenant,
		logger: nopLogger{},
	}
}

func (e *Engine) WithLogger(logger Logger) *Engine {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Principal returns the native role name backing the logical role.
func (e *Engine) Principal(role string) string {
	if role == RoleAnonymous {
		return RoleAnonymous
	}
	return e.tenant + "_" + role
}

// ProvisionRole creates the native NOLOGIN principal for a logical role.
// Provisioning an already provisioned role is not an error.
func (e *Engine) ProvisionRole(ctx context.Context, role string) error {
	principal, err := e.quotedPrincipal(role)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("CREATE ROLE %s NOLOGIN", principal)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		if code, ok := pgErrCode(err); ok && code == pgErrDuplicateObject {
			e.logger.Debug("role %s already provisioned", role)
			return nil
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to provision role").
			WithMetadata(map[string]any{"role": role})
	}

	e.logger.Info("provisioned role %s", role)
	return nil
}

// DeprovisionRole drops the native principal for a logical role. The shared
// built-in roles are protected.
func (e *Engine) DeprovisionRole(ctx context.Context, role string) error {
	if _, protected := protectedRoles[role]; protected {
		return ErrProtectedRole
	}

	principal, err := e.quotedPrincipal(role)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("DROP ROLE %s", principal)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		if code, ok := pgErrCode(err); ok {
			switch code {
			case pgErrUndefinedObject:
				e.logger.Debug("role %s already dropped", role)
				return nil
			case pgErrDependentObjects:
				return errors.Wrap(err, errors.CategoryConflict, "role still owns grants or policies").
					WithMetadata(map[string]any{"role": role})
			}
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to deprovision role").
			WithMetadata(map[string]any{"role": role})
	}

	e.logger.Info("deprovisioned role %s", role)
	return nil
}

func (e *Engine) quotedPrincipal(role string) (string, error) {
	if err := validateIdentifier(role); err != nil {
		return "", err
	}
	return quoteIdent(e.Principal(role)), nil
}

// validateIdentifier rejects anything that is not a plain lowercase SQL
// identifier. Grant and policy statements interpolate identifiers, so this is
// the line between data and DDL.
func validateIdentifier(name string) error {
	if name == "" {
		return errors.New("identifier must not be empty", errors.CategoryBadInput)
	}
	if len(name) > 63 {
		return errors.New("identifier exceeds 63 characters", errors.CategoryBadInput).
			WithMetadata(map[string]any{"identifier": name})
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return invalidIdentifier(name)
			}
		default:
			return invalidIdentifier(name)
		}
	}
	return nil
}

func invalidIdentifier(name string) error {
	return errors.New("identifier must match [a-z_][a-z0-9_]*", errors.CategoryBadInput).
		WithMetadata(map[string]any{"identifier": name})
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type pgError interface {
	SQLState() string
}

func pgErrCode(err error) (string, bool) {
	var pgErr pgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState(), true
	}
	return "", false
}

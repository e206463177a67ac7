package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

// Policy is a row level security policy attached to a table for one logical
// role. The condition is a raw SQL expression evaluated per row; only admin
// surfaces may define it.
type Policy struct {
	Name       string `json:"name"`
	Table      string `json:"table"`
	Role       string `json:"role"`
	Command    string `json:"command"`
	Condition  string `json:"condition"`
	RLSEnabled bool   `json:"rls_enabled"`
	RLSForced  bool   `json:"rls_forced"`
}

// EnableRowSecurity turns row level security on for the table. Without this
// the table's policies exist but are not enforced.
func (e *Engine) EnableRowSecurity(ctx context.Context, table string) error {
	return e.setRowSecurity(ctx, table, true)
}

// DisableRowSecurity turns row level security off for the table.
func (e *Engine) DisableRowSecurity(ctx context.Context, table string) error {
	return e.setRowSecurity(ctx, table, false)
}

func (e *Engine) setRowSecurity(ctx context.Context, table string, enabled bool) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}

	verb := "DISABLE"
	if enabled {
		verb = "ENABLE"
	}

	stmt := fmt.Sprintf("ALTER TABLE %s %s ROW LEVEL SECURITY", quoteIdent(table), verb)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to alter row security").
			WithMetadata(map[string]any{"table": table, "enabled": enabled})
	}

	e.logger.Info("row security %sd on %s", strings.ToLower(verb), table)
	return nil
}

// AddPolicy creates a row level security policy for the role on the table and
// turns row security on so the policy is enforced immediately. The condition
// is interpolated verbatim; callers gate this behind the admin surface.
func (e *Engine) AddPolicy(ctx context.Context, name, table, role, condition string) error {
	if err := validateIdentifier(name); err != nil {
		return err
	}
	if err := validateIdentifier(table); err != nil {
		return err
	}
	principal, err := e.quotedPrincipal(role)
	if err != nil {
		return err
	}
	if strings.TrimSpace(condition) == "" {
		return errors.New("policy condition must not be empty", errors.CategoryBadInput)
	}

	if err := e.setRowSecurity(ctx, table, true); err != nil {
		return err
	}

	stmt := fmt.Sprintf(
		"CREATE POLICY %s ON %s TO %s USING (%s)",
		quoteIdent(name), quoteIdent(table), principal, condition,
	)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		if code, ok := pgErrCode(err); ok && code == pgErrDuplicateObject {
			return errors.New("policy already exists", errors.CategoryConflict).
				WithMetadata(map[string]any{"policy": name, "table": table})
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to create policy").
			WithMetadata(map[string]any{"policy": name, "table": table})
	}

	e.logger.Info("created policy %s on %s for %s", name, table, role)
	return nil
}

// RemovePolicy drops a policy from the table. Dropping an unknown policy is
// not an error.
func (e *Engine) RemovePolicy(ctx context.Context, name, table string) error {
	if err := validateIdentifier(name); err != nil {
		return err
	}
	if err := validateIdentifier(table); err != nil {
		return err
	}

	stmt := fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", quoteIdent(name), quoteIdent(table))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to drop policy").
			WithMetadata(map[string]any{"policy": name, "table": table})
	}

	e.logger.Info("dropped policy %s on %s", name, table)
	return nil
}

// ListPolicies reads the policies visible in pg_policies together with each
// table's row security flag.
func (e *Engine) ListPolicies(ctx context.Context, table string) ([]Policy, error) {
	if table != "" {
		if err := validateIdentifier(table); err != nil {
			return nil, err
		}
	}

	query := `
		select
			pol.policyname,
			pol.tablename,
			pol.roles,
			pol.cmd,
			coalesce(pol.qual, ''),
			cls.relrowsecurity,
			cls.relforcerowsecurity
		from pg_policies pol
		join pg_class cls on cls.relname = pol.tablename
		where pol.schemaname = 'public'
	`
	args := make([]any, 0, 1)
	if table != "" {
		query += " and pol.tablename = ?"
		args = append(args, table)
	}
	query += " order by pol.tablename, pol.policyname"

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to query policies")
	}
	defer rows.Close()

	var result []Policy
	for rows.Next() {
		var p Policy
		var roles string
		if err := rows.Scan(&p.Name, &p.Table, &roles, &p.Command, &p.Condition, &p.RLSEnabled, &p.RLSForced); err != nil {
			return nil, err
		}
		p.Role = e.logicalRole(firstArrayElement(roles))
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// logicalRole strips the tenant namespace from a principal name.
func (e *Engine) logicalRole(principal string) string {
	if principal == RoleAnonymous {
		return RoleAnonymous
	}
	return strings.TrimPrefix(principal, e.tenant+"_")
}

// firstArrayElement parses the first element out of a text[] literal like
// {tenant_user,tenant_admin}.
func firstArrayElement(literal string) string {
	trimmed := strings.Trim(literal, "{}")
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, ",", 2)
	return strings.Trim(parts[0], `"`)
}

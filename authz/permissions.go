package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
)

// Privilege is a table level Postgres privilege.
type Privilege string

const (
	PrivilegeSelect     Privilege = "SELECT"
	PrivilegeInsert     Privilege = "INSERT"
	PrivilegeUpdate     Privilege = "UPDATE"
	PrivilegeDelete     Privilege = "DELETE"
	PrivilegeReferences Privilege = "REFERENCES"
	PrivilegeTrigger    Privilege = "TRIGGER"
	PrivilegeTruncate   Privilege = "TRUNCATE"
)

// Privileges lists every grantable table privilege in a stable order.
var Privileges = []Privilege{
	PrivilegeSelect,
	PrivilegeInsert,
	PrivilegeUpdate,
	PrivilegeDelete,
	PrivilegeReferences,
	PrivilegeTrigger,
	PrivilegeTruncate,
}

// Valid reports whether the privilege is one of the grantable seven.
func (p Privilege) Valid() bool {
	for _, known := range Privileges {
		if p == known {
			return true
		}
	}
	return false
}

// Grant describes the privileges a logical role holds on one table.
type Grant struct {
	Role       string             `json:"role"`
	Table      string             `json:"table"`
	Privileges map[Privilege]bool `json:"privileges"`
}

func validatePrivileges(privileges []Privilege) error {
	if len(privileges) == 0 {
		return errors.New("at least one privilege is required", errors.CategoryBadInput)
	}
	for _, p := range privileges {
		if !p.Valid() {
			return errors.New("unknown privilege", errors.CategoryBadInput).
				WithMetadata(map[string]any{"privilege": string(p)})
		}
	}
	return nil
}

func privilegeList(privileges []Privilege) string {
	parts := make([]string, 0, len(privileges))
	for _, p := range privileges {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ", ")
}

// SetPermissions grants the privileges on the table to the logical role.
func (e *Engine) SetPermissions(ctx context.Context, role, table string, privileges ...Privilege) error {
	if err := validatePrivileges(privileges); err != nil {
		return err
	}
	if err := validateIdentifier(table); err != nil {
		return err
	}
	principal, err := e.quotedPrincipal(role)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("GRANT %s ON %s TO %s", privilegeList(privileges), quoteIdent(table), principal)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to grant privileges").
			WithMetadata(map[string]any{"role": role, "table": table})
	}

	e.logger.Info("granted %s on %s to %s", privilegeList(privileges), table, role)
	return nil
}

// RemovePermissions revokes the privileges on the table from the logical role.
func (e *Engine) RemovePermissions(ctx context.Context, role, table string, privileges ...Privilege) error {
	if err := validatePrivileges(privileges); err != nil {
		return err
	}
	if err := validateIdentifier(table); err != nil {
		return err
	}
	principal, err := e.quotedPrincipal(role)
	if err != nil {
		return err
	}

	stmt := fmt.Sprintf("REVOKE %s ON %s FROM %s", privilegeList(privileges), quoteIdent(table), principal)
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke privileges").
			WithMetadata(map[string]any{"role": role, "table": table})
	}

	e.logger.Info("revoked %s on %s from %s", privilegeList(privileges), table, role)
	return nil
}

// ListPermissions reads the effective grants for every tenant principal from
// the catalog and folds them into one Grant per role and table, with every
// one of the seven privileges represented.
func (e *Engine) ListPermissions(ctx context.Context, roles ...string) ([]Grant, error) {
	principals := make([]string, 0, len(roles))
	byPrincipal := make(map[string]string, len(roles))
	for _, role := range roles {
		if err := validateIdentifier(role); err != nil {
			return nil, err
		}
		principal := e.Principal(role)
		principals = append(principals, principal)
		byPrincipal[principal] = role
	}

	rows, err := e.db.QueryContext(ctx, `
		select grantee, table_name, privilege_type
		from information_schema.table_privileges
		where grantee = any(?)
		order by grantee, table_name, privilege_type
	`, pgTextArray(principals))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to query table privileges")
	}
	defer rows.Close()

	grants := make(map[string]*Grant)
	order := make([]string, 0)

	for rows.Next() {
		var grantee, table, privilege string
		if err := rows.Scan(&grantee, &table, &privilege); err != nil {
			return nil, err
		}

		role, ok := byPrincipal[grantee]
		if !ok {
			continue
		}

		key := role + "/" + table
		grant, ok := grants[key]
		if !ok {
			grant = &Grant{
				Role:       role,
				Table:      table,
				Privileges: emptyPrivilegeSet(),
			}
			grants[key] = grant
			order = append(order, key)
		}

		p := Privilege(strings.ToUpper(privilege))
		if p.Valid() {
			grant.Privileges[p] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]Grant, 0, len(order))
	for _, key := range order {
		result = append(result, *grants[key])
	}
	return result, nil
}

func emptyPrivilegeSet() map[Privilege]bool {
	set := make(map[Privilege]bool, len(Privileges))
	for _, p := range Privileges {
		set[p] = false
	}
	return set
}

// pgTextArray renders a text[] literal for catalog queries.
func pgTextArray(values []string) string {
	escaped := make([]string, 0, len(values))
	for _, v := range values {
		escaped = append(escaped, `"`+strings.ReplaceAll(v, `"`, `\"`)+`"`)
	}
	return "{" + strings.Join(escaped, ",") + "}"
}

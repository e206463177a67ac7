package authz

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableRowSecurity(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "documents" ENABLE ROW LEVEL SECURITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, engine.EnableRowSecurity(context.Background(), "documents"))
	expectMet(t, mock)
}

func TestDisableRowSecurity(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "documents" DISABLE ROW LEVEL SECURITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, engine.DisableRowSecurity(context.Background(), "documents"))
	expectMet(t, mock)
}

func TestRowSecurityRejectsBadTable(t *testing.T) {
	engine, mock := newMockEngine(t)

	err := engine.EnableRowSecurity(context.Background(), "docs; drop table docs")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryBadInput, errCategory(t, err))
	expectMet(t, mock)
}

func TestAddPolicy(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "documents" ENABLE ROW LEVEL SECURITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE POLICY "own_rows" ON "documents" TO "acme_user" USING (owner = current_user)`,
	)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := engine.AddPolicy(context.Background(), "own_rows", "documents", "user", "owner = current_user")
	require.NoError(t, err)
	expectMet(t, mock)
}

func TestAddPolicyAnonymousPrincipal(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "documents" ENABLE ROW LEVEL SECURITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE POLICY "public_read" ON "documents" TO "anonymous" USING (published = true)`,
	)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := engine.AddPolicy(context.Background(), "public_read", "documents", RoleAnonymous, "published = true")
	require.NoError(t, err)
	expectMet(t, mock)
}

func TestAddPolicyValidation(t *testing.T) {
	engine, mock := newMockEngine(t)
	ctx := context.Background()

	err := engine.AddPolicy(ctx, "own_rows", "documents", "user", "   ")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryBadInput, errCategory(t, err))

	err = engine.AddPolicy(ctx, "own rows", "documents", "user", "owner = current_user")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryBadInput, errCategory(t, err))

	err = engine.AddPolicy(ctx, "own_rows", "Documents", "user", "owner = current_user")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryBadInput, errCategory(t, err))

	expectMet(t, mock)
}

func TestAddPolicyDuplicate(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE "documents" ENABLE ROW LEVEL SECURITY`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE POLICY "own_rows"`)).
		WillReturnError(fakePgErr{code: pgErrDuplicateObject})

	err := engine.AddPolicy(context.Background(), "own_rows", "documents", "user", "owner = current_user")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryConflict, errCategory(t, err))
	expectMet(t, mock)
}

func TestRemovePolicy(t *testing.T) {
	engine, mock := newMockEngine(t)

	mock.ExpectExec(regexp.QuoteMeta(`DROP POLICY IF EXISTS "own_rows" ON "documents"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, engine.RemovePolicy(context.Background(), "own_rows", "documents"))
	expectMet(t, mock)
}

func TestListPolicies(t *testing.T) {
	engine, mock := newMockEngine(t)

	rows := sqlmock.NewRows([]string{"policyname", "tablename", "roles", "cmd", "qual", "relrowsecurity", "relforcerowsecurity"}).
		AddRow("own_rows", "documents", "{acme_user}", "ALL", "(owner = current_user)", true, true).
		AddRow("public_read", "documents", "{anonymous}", "SELECT", "(published = true)", true, false).
		AddRow("audit_all", "events", `{"acme_auditor",acme_admin}`, "SELECT", "", false, false)

	mock.ExpectQuery(`pg_policies`).WillReturnRows(rows)

	policies, err := engine.ListPolicies(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, policies, 3)

	assert.Equal(t, "own_rows", policies[0].Name)
	assert.Equal(t, "documents", policies[0].Table)
	assert.Equal(t, "user", policies[0].Role)
	assert.Equal(t, "ALL", policies[0].Command)
	assert.Equal(t, "(owner = current_user)", policies[0].Condition)
	assert.True(t, policies[0].RLSEnabled)
	assert.True(t, policies[0].RLSForced)

	assert.Equal(t, "anonymous", policies[1].Role)
	assert.False(t, policies[1].RLSForced)

	assert.Equal(t, "auditor", policies[2].Role)
	assert.False(t, policies[2].RLSEnabled)

	expectMet(t, mock)
}

func TestListPoliciesForTable(t *testing.T) {
	engine, mock := newMockEngine(t)

	rows := sqlmock.NewRows([]string{"policyname", "tablename", "roles", "cmd", "qual", "relrowsecurity", "relforcerowsecurity"}).
		AddRow("own_rows", "documents", "{acme_user}", "ALL", "(owner = current_user)", true, false)

	mock.ExpectQuery(`pg_policies`).WillReturnRows(rows)

	policies, err := engine.ListPolicies(context.Background(), "documents")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "documents", policies[0].Table)

	expectMet(t, mock)
}

func TestListPoliciesRejectsBadTable(t *testing.T) {
	engine, mock := newMockEngine(t)

	_, err := engine.ListPolicies(context.Background(), "Documents")
	require.Error(t, err)
	assert.Equal(t, goerrors.CategoryBadInput, errCategory(t, err))
	expectMet(t, mock)
}

func TestLogicalRole(t *testing.T) {
	engine, _ := newMockEngine(t)

	assert.Equal(t, "user", engine.logicalRole("acme_user"))
	assert.Equal(t, "anonymous", engine.logicalRole("anonymous"))
	assert.Equal(t, "other_admin", engine.logicalRole("other_admin"))
}

func TestFirstArrayElement(t *testing.T) {
	assert.Equal(t, "acme_user", firstArrayElement("{acme_user}"))
	assert.Equal(t, "acme_user", firstArrayElement(`{"acme_user",acme_admin}`))
	assert.Equal(t, "", firstArrayElement("{}"))
	assert.Equal(t, "", firstArrayElement(""))
}

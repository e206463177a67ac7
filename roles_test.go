package users_test

import (
	"testing"

	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
)

func TestIsBuiltinRole(t *testing.T) {
	for _, role := range users.BuiltinRoles {
		assert.True(t, users.IsBuiltinRole(role), role)
	}

	assert.False(t, users.IsBuiltinRole("auditor"))
	assert.False(t, users.IsBuiltinRole(""))
	assert.False(t, users.IsBuiltinRole("Admin"))
}

func TestRoleIsAtLeast(t *testing.T) {
	tests := []struct {
		role    string
		minRole string
		want    bool
	}{
		{users.RoleAdmin, users.RoleAdmin, true},
		{users.RoleAdmin, users.RoleUser, true},
		{users.RoleAdmin, users.RoleAnonymous, true},
		{users.RoleUser, users.RoleAdmin, false},
		{users.RoleUser, users.RoleUser, true},
		{users.RoleUser, users.RoleReadOnly, true},
		{users.RoleReadOnly, users.RoleUser, false},
		{users.RoleReadOnly, users.RoleAnonymous, true},
		{users.RoleAnonymous, users.RoleReadOnly, false},
		// unknown custom roles rank with user
		{"auditor", users.RoleUser, true},
		{"auditor", users.RoleAdmin, false},
		{users.RoleAdmin, "auditor", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, users.RoleIsAtLeast(tt.role, tt.minRole),
			"RoleIsAtLeast(%q, %q)", tt.role, tt.minRole)
	}
}

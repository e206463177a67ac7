package users_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	users "github.com/goliatone/go-users"
	"github.com/stretchr/testify/assert"
)

func TestJWTClaimsAccessors(t *testing.T) {
	issued := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)

	claims := &users.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Account:  "ada",
		UserRole: users.RoleAdmin,
	}

	assert.Equal(t, "acc-1", claims.Subject())
	assert.Equal(t, "ada", claims.Login())
	assert.Equal(t, users.RoleAdmin, claims.Role())
	assert.WithinDuration(t, issued, claims.IssuedAt(), time.Second)
	assert.WithinDuration(t, expires, claims.Expires(), time.Second)
}

func TestJWTClaimsLoginFallsBackToSubject(t *testing.T) {
	claims := &users.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "acc-1"},
	}
	assert.Equal(t, "acc-1", claims.Login())
}

func TestJWTClaimsRoleChecks(t *testing.T) {
	claims := &users.JWTClaims{UserRole: users.RoleUser}

	assert.True(t, claims.HasRole(users.RoleUser))
	assert.False(t, claims.HasRole(users.RoleAdmin))

	assert.True(t, claims.IsAtLeast(users.RoleReadOnly))
	assert.True(t, claims.IsAtLeast(users.RoleUser))
	assert.False(t, claims.IsAtLeast(users.RoleAdmin))
}

func TestJWTClaimsZeroTimes(t *testing.T) {
	claims := &users.JWTClaims{}
	assert.True(t, claims.Expires().IsZero())
	assert.True(t, claims.IssuedAt().IsZero())
}

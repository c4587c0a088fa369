package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func principalWith(id uint64, roles ...string) *Principal {
	return &Principal{ID: id, Email: "p@example.com", Name: "P", Roles: roles, IsActive: true}
}

func TestHasAnyRole(t *testing.T) {
	p := principalWith(1, "viewer", "editor")

	assert.True(t, p.HasAnyRole("editor"))
	assert.True(t, p.HasAnyRole("admin", "viewer"))
	assert.False(t, p.HasAnyRole("admin"))
	assert.False(t, p.HasAnyRole())
}

func TestIsAdmin(t *testing.T) {
	assert.True(t, principalWith(1, "admin").IsAdmin())
	assert.True(t, principalWith(1, "viewer", "super_admin").IsAdmin())
	assert.False(t, principalWith(1, "viewer").IsAdmin())
	// Role names are exact; a look-alike does not count.
	assert.False(t, principalWith(1, "Admin").IsAdmin())
	assert.False(t, principalWith(1).IsAdmin())
}

func TestCanModify(t *testing.T) {
	tests := []struct {
		name    string
		p       *Principal
		target  uint64
		isAdmin bool
		isOwner bool
	}{
		{"admin modifies anyone", principalWith(1, "admin"), 2, true, false},
		{"admin modifies self", principalWith(1, "admin"), 1, true, true},
		{"owner modifies self", principalWith(3, "viewer"), 3, false, true},
		{"stranger denied", principalWith(3, "viewer"), 4, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := CanModify(tt.p, tt.target)
			assert.Equal(t, tt.isAdmin, d.IsAdmin)
			assert.Equal(t, tt.isOwner, d.IsOwner)
			assert.Equal(t, tt.isAdmin || tt.isOwner, d.Allowed())
		})
	}
}

func TestSelfEscalationFields(t *testing.T) {
	t.Run("non-admin touching own restricted fields", func(t *testing.T) {
		p := principalWith(9, "viewer")
		got := SelfEscalationFields(p, 9, []string{"name", "is_active", "exercise_id"})
		assert.Equal(t, []string{"is_active", "exercise_id"}, got)
	})

	t.Run("non-admin clearing own lockout", func(t *testing.T) {
		p := principalWith(9, "viewer")
		got := SelfEscalationFields(p, 9, []string{"failed_attempts", "locked_until"})
		assert.Equal(t, []string{"failed_attempts", "locked_until"}, got)
	})

	t.Run("benign self update passes", func(t *testing.T) {
		p := principalWith(9, "viewer")
		assert.Empty(t, SelfEscalationFields(p, 9, []string{"name", "email"}))
	})

	t.Run("admin never restricted", func(t *testing.T) {
		p := principalWith(9, "admin")
		assert.Empty(t, SelfEscalationFields(p, 9, []string{"is_active", "locked_until"}))
	})

	t.Run("other-target updates not restricted here", func(t *testing.T) {
		p := principalWith(9, "viewer")
		assert.Empty(t, SelfEscalationFields(p, 10, []string{"is_active"}))
	})
}

package model

import "time"

// RoleAssignment mirrors the `user_roles` junction table. The composite
// (user_id, role_id) key is unique; revoking flips is_active off and a later
// re-assign reactivates the same row instead of inserting a duplicate.
type RoleAssignment struct {
	UserID     uint64     // user_roles.user_id
	RoleID     uint64     // user_roles.role_id
	AssignedAt time.Time  // user_roles.assigned_at
	AssignedBy *uint64    // user_roles.assigned_by (nullable, assigning principal)
	IsActive   bool       // user_roles.is_active
	ExpiresAt  *time.Time // user_roles.expires_at (nullable)
	Notes      string     // user_roles.notes
}

// Effective reports whether the assignment currently grants its role:
// it must be active and, when an expiry is set, not yet expired.
func (a *RoleAssignment) Effective(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

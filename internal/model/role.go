package model

import (
	"strings"
	"time"
)

// Role mirrors the `roles` table. Role names are unique case-insensitively
// at the storage level (unique index over LOWER(name)).
type Role struct {
	ID          uint64     // roles.id
	Name        string     // roles.name
	Description string     // roles.description
	IsActive    bool       // roles.is_active
	CreatedAt   time.Time  // roles.created_at
	UpdatedAt   time.Time  // roles.updated_at
	DeletedAt   *time.Time // roles.deleted_at (nullable)
}

// Reserved role names can never be created through the API; protected roles
// exist but refuse deactivation and deletion.
var (
	reservedRoleNames  = map[string]bool{"admin": true, "super_admin": true, "system": true, "root": true}
	protectedRoleNames = map[string]bool{"admin": true, "super_admin": true}
)

// IsReservedRoleName reports whether name collides with a reserved role,
// ignoring case and surrounding whitespace.
func IsReservedRoleName(name string) bool {
	return reservedRoleNames[strings.ToLower(strings.TrimSpace(name))]
}

// IsProtectedRoleName reports whether name belongs to a role that must not
// be deactivated or deleted.
func IsProtectedRoleName(name string) bool {
	return protectedRoleNames[strings.ToLower(strings.TrimSpace(name))]
}

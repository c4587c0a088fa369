// Package repository contains the data access layer, separated from HTTP
// handlers. Repositories hold hand-written SQL against MySQL and define
// sentinel errors so higher layers can distinguish failure scenarios
// without inspecting driver errors. Lookups that find nothing return
// sql.ErrNoRows; handlers translate that into a 404.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned when creating or updating a user would
// violate the unique email constraint.
var ErrEmailExists = errors.New("email already exists")

// ErrRoleNameExists is returned when a role name collides with an existing
// role (names are unique case-insensitively).
var ErrRoleNameExists = errors.New("role name already exists")

// isDuplicate reports whether err is a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

package model

import "time"

// Task mirrors the `tasks` table. Tasks attach to roles through the
// `role_tasks` junction table.
type Task struct {
	ID          uint64     // tasks.id
	Title       string     // tasks.title
	Description string     // tasks.description
	IsActive    bool       // tasks.is_active
	CreatedAt   time.Time  // tasks.created_at
	UpdatedAt   time.Time  // tasks.updated_at
	DeletedAt   *time.Time // tasks.deleted_at (nullable)
}

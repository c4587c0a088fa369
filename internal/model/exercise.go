package model

import "time"

// Exercise statuses. An exercise is either running or wrapped up; there is
// no draft state.
const (
	ExerciseStatusActive = "active"
	ExerciseStatusClosed = "closed"
)

// Exercise mirrors the `exercises` table. Users affiliate with at most one
// exercise via users.exercise_id.
type Exercise struct {
	ID        uint64     // exercises.id
	Name      string     // exercises.name
	StartsAt  time.Time  // exercises.starts_at
	EndsAt    time.Time  // exercises.ends_at
	Status    string     // exercises.status (active|closed)
	CreatedAt time.Time  // exercises.created_at
	UpdatedAt time.Time  // exercises.updated_at
	DeletedAt *time.Time // exercises.deleted_at (nullable)
}

package model

import "time"

// User mirrors the `users` table. The password hash never leaves the
// repository/auth layers; handlers build separate response types.
//
// Fields:
//
//	ID             – primary key identifier of the user.
//	Email          – unique email address, stored lower-cased and trimmed.
//	PasswordHash   – bcrypt hashed password.
//	Name           – display name.
//	IsActive       – whether the account may authenticate.
//	FailedAttempts – consecutive failed login attempts since the last success.
//	LockedUntil    – when set and in the future, all logins are rejected.
//	LastLoginAt    – timestamp of the last successful login.
//	ExerciseID     – optional affiliation to an exercise.
//	DeletedAt      – soft-delete marker; nil means the row is live.
type User struct {
	ID             uint64     // users.id
	Email          string     // users.email
	PasswordHash   string     // users.password_hash
	Name           string     // users.name
	IsActive       bool       // users.is_active
	FailedAttempts int        // users.failed_attempts
	LockedUntil    *time.Time // users.locked_until (nullable)
	LastLoginAt    *time.Time // users.last_login_at (nullable)
	ExerciseID     *uint64    // users.exercise_id (nullable FK)
	CreatedAt      time.Time  // users.created_at
	UpdatedAt      time.Time  // users.updated_at
	DeletedAt      *time.Time // users.deleted_at (nullable)
}

// Locked reports whether the account is currently locked out.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

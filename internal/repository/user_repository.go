package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/model"
)

// UserRepo encapsulates all queries against the `users` table. It is the
// single source of truth for account state: failed-attempt counters,
// lockout timestamps and role assignments all live here, never in memory.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo constructs a UserRepo with the provided DB handle.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = "id, email, password_hash, name, is_active, failed_attempts, locked_until, last_login_at, exercise_id, created_at, updated_at, deleted_at"

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive,
		&u.FailedAttempts, &u.LockedUntil, &u.LastLoginAt, &u.ExerciseID,
		&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user, hashing the password on the way in. The
// plaintext never reaches the database. On success u.ID is populated.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, name, is_active, exercise_id) VALUES (?,?,?,?,?)",
		u.Email, hash, u.Name, u.IsActive, u.ExerciseID)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.PasswordHash = hash
	return nil
}

// FindByEmail fetches a live (non-deleted) user by normalized email.
// Returns sql.ErrNoRows when no such account exists.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND deleted_at IS NULL LIMIT 1", email))
}

// FindByID fetches a user by id. Soft-deleted rows are only returned when
// includeDeleted is set.
func (r *UserRepo) FindByID(ctx context.Context, id uint64, includeDeleted bool) (*model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE id=?"
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	return scanUser(r.db.QueryRowContext(ctx, q+" LIMIT 1", id))
}

// List returns a page of users plus the total match count.
func (r *UserRepo) List(ctx context.Context, q ListQuery) ([]model.User, int, error) {
	q = q.Normalize()
	where := "WHERE 1=1"
	args := []interface{}{}
	if !q.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}
	if q.Search != "" {
		where += " AND (email LIKE ? OR name LIKE ?)"
		like := "%" + q.Search + "%"
		args = append(args, like, like)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.IsActive,
			&u.FailedAttempts, &u.LockedUntil, &u.LastLoginAt, &u.ExerciseID,
			&u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// Update writes the mutable profile fields. The password hash and lockout
// counters are deliberately not touched here; they have dedicated paths.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET email=?, name=?, is_active=?, exercise_id=? WHERE id=? AND deleted_at IS NULL",
		u.Email, u.Name, u.IsActive, u.ExerciseID, u.ID)
	if isDuplicate(err) {
		return ErrEmailExists
	}
	return err
}

// UpdatePassword hashes and stores a new password for the user.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := auth.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"UPDATE users SET password_hash=? WHERE id=? AND deleted_at IS NULL", hash, id)
	return err
}

// RegisterFailedAttempt bumps the failed-attempt counter and, when the
// post-increment count reaches threshold, sets locked_until in the same
// statement. The WHERE clause skips rows that are already locked, so the
// counter is idempotent while a lock is in force and concurrent attempts
// cannot lose updates (MySQL applies SET clauses left to right, so
// locked_until sees the pre-increment counter).
func (r *UserRepo) RegisterFailedAttempt(ctx context.Context, id uint64, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET locked_until = IF(failed_attempts + 1 >= ?, DATE_ADD(UTC_TIMESTAMP(), INTERVAL ? SECOND), locked_until),
		        failed_attempts = failed_attempts + 1
		  WHERE id = ? AND deleted_at IS NULL
		    AND (locked_until IS NULL OR locked_until <= UTC_TIMESTAMP())`,
		threshold, int(lockFor.Seconds()), id)
	if err != nil {
		return 0, nil, err
	}
	var attempts int
	var lockedUntil *time.Time
	err = r.db.QueryRowContext(ctx,
		"SELECT failed_attempts, locked_until FROM users WHERE id=? LIMIT 1", id).
		Scan(&attempts, &lockedUntil)
	if err != nil {
		return 0, nil, err
	}
	return attempts, lockedUntil, nil
}

// SetLockState lets an admin overwrite the failed-attempt counter and
// lock-until timestamp directly, e.g. to unlock an account early.
func (r *UserRepo) SetLockState(ctx context.Context, id uint64, attempts int, until *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET failed_attempts=?, locked_until=? WHERE id=? AND deleted_at IS NULL",
		attempts, until, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// RecordLogin resets the lockout state and stamps last_login_at after a
// successful authentication.
func (r *UserRepo) RecordLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET failed_attempts=0, locked_until=NULL, last_login_at=? WHERE id=?",
		at, id)
	return err
}

// EffectiveRoleNames returns the names of the user's currently effective
// role assignments: assignment active and unexpired, role active and live.
func (r *UserRepo) EffectiveRoleNames(ctx context.Context, userID uint64, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name FROM roles r
		   JOIN user_roles ur ON ur.role_id = r.id
		  WHERE ur.user_id = ? AND ur.is_active = 1
		    AND (ur.expires_at IS NULL OR ur.expires_at > ?)
		    AND r.is_active = 1 AND r.deleted_at IS NULL
		  ORDER BY r.name`,
		userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// SoftDelete marks the user deleted; default reads stop returning it.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET deleted_at=UTC_TIMESTAMP() WHERE id=? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Restore reverses a soft delete.
func (r *UserRepo) Restore(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET deleted_at=NULL WHERE id=? AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// PermanentDelete removes the row for good, cascading junction cleanup
// first so no orphaned assignments remain.
func (r *UserRepo) PermanentDelete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// requireAffected converts a zero-row UPDATE/DELETE into sql.ErrNoRows so
// handlers can answer 404 uniformly.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldprep/exercise-hub/internal/model"
)

// AssignmentRepo manages the `user_roles` junction table. The composite
// (user_id, role_id) primary key serializes concurrent assign/revoke for
// the same pair at the storage layer, so a pair can never hold two active
// rows.
type AssignmentRepo struct {
	db *sql.DB
}

// NewAssignmentRepo constructs an AssignmentRepo with the provided DB handle.
func NewAssignmentRepo(db *sql.DB) *AssignmentRepo { return &AssignmentRepo{db: db} }

// Assign grants a role to a user. A previously revoked pair is reactivated
// in place rather than duplicated, via INSERT ... ON DUPLICATE KEY UPDATE
// keyed on the composite primary key.
func (r *AssignmentRepo) Assign(ctx context.Context, a *model.RoleAssignment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id, assigned_at, assigned_by, is_active, expires_at, notes)
		 VALUES (?,?,UTC_TIMESTAMP(),?,1,?,?)
		 ON DUPLICATE KEY UPDATE
		   is_active = 1,
		   assigned_at = UTC_TIMESTAMP(),
		   assigned_by = VALUES(assigned_by),
		   expires_at = VALUES(expires_at),
		   notes = VALUES(notes)`,
		a.UserID, a.RoleID, a.AssignedBy, a.ExpiresAt, a.Notes)
	return err
}

// Revoke deactivates an assignment. Returns sql.ErrNoRows when the pair
// has no active assignment.
func (r *AssignmentRepo) Revoke(ctx context.Context, userID, roleID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE user_roles SET is_active=0 WHERE user_id=? AND role_id=? AND is_active=1",
		userID, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListForUser returns every assignment row for a user, effective or not,
// so admins can inspect history.
func (r *AssignmentRepo) ListForUser(ctx context.Context, userID uint64) ([]model.RoleAssignment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, role_id, assigned_at, assigned_by, is_active, expires_at, notes
		   FROM user_roles WHERE user_id=? ORDER BY role_id`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RoleAssignment
	for rows.Next() {
		var a model.RoleAssignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.AssignedAt, &a.AssignedBy,
			&a.IsActive, &a.ExpiresAt, &a.Notes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Find returns the assignment row for a pair, regardless of state.
func (r *AssignmentRepo) Find(ctx context.Context, userID, roleID uint64) (*model.RoleAssignment, error) {
	var a model.RoleAssignment
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, role_id, assigned_at, assigned_by, is_active, expires_at, notes
		   FROM user_roles WHERE user_id=? AND role_id=? LIMIT 1`,
		userID, roleID).
		Scan(&a.UserID, &a.RoleID, &a.AssignedAt, &a.AssignedBy, &a.IsActive, &a.ExpiresAt, &a.Notes)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// hasEffective reports whether the pair currently grants the role:
// active and not expired as of now.
func (r *AssignmentRepo) hasEffective(ctx context.Context, userID, roleID uint64, now time.Time) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_roles
		  WHERE user_id=? AND role_id=? AND is_active=1
		    AND (expires_at IS NULL OR expires_at > ?)`,
		userID, roleID, now).Scan(&n)
	return n > 0, err
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fieldprep/exercise-hub/internal/model"
)

// RoleRepo encapsulates queries against the `roles` table. Name uniqueness
// is case-insensitive, enforced by a unique index over the lower-cased name.
type RoleRepo struct {
	db *sql.DB
}

// NewRoleRepo constructs a RoleRepo with the provided DB handle.
func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

const roleColumns = "id, name, description, is_active, created_at, updated_at, deleted_at"

func scanRole(row *sql.Row) (*model.Role, error) {
	var ro model.Role
	err := row.Scan(&ro.ID, &ro.Name, &ro.Description, &ro.IsActive,
		&ro.CreatedAt, &ro.UpdatedAt, &ro.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &ro, nil
}

// Create inserts a role. Reserved-name checks belong to the handler layer;
// the repository only enforces uniqueness.
func (r *RoleRepo) Create(ctx context.Context, ro *model.Role) error {
	ro.Name = strings.TrimSpace(ro.Name)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO roles (name, description, is_active) VALUES (?,?,?)",
		ro.Name, ro.Description, ro.IsActive)
	if err != nil {
		if isDuplicate(err) {
			return ErrRoleNameExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ro.ID = uint64(id)
	return nil
}

// FindByID fetches a role by id, optionally including soft-deleted rows.
func (r *RoleRepo) FindByID(ctx context.Context, id uint64, includeDeleted bool) (*model.Role, error) {
	q := "SELECT " + roleColumns + " FROM roles WHERE id=?"
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	return scanRole(r.db.QueryRowContext(ctx, q+" LIMIT 1", id))
}

// FindByName fetches a live role by case-insensitive name.
func (r *RoleRepo) FindByName(ctx context.Context, name string) (*model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE LOWER(name)=LOWER(?) AND deleted_at IS NULL LIMIT 1",
		strings.TrimSpace(name)))
}

// List returns a page of roles plus the total match count.
func (r *RoleRepo) List(ctx context.Context, q ListQuery) ([]model.Role, int, error) {
	q = q.Normalize()
	where := "WHERE 1=1"
	args := []interface{}{}
	if !q.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}
	if q.Search != "" {
		where += " AND name LIKE ?"
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Role
	for rows.Next() {
		var ro model.Role
		if err := rows.Scan(&ro.ID, &ro.Name, &ro.Description, &ro.IsActive,
			&ro.CreatedAt, &ro.UpdatedAt, &ro.DeletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, ro)
	}
	return out, total, rows.Err()
}

// Update writes name, description and active flag.
func (r *RoleRepo) Update(ctx context.Context, ro *model.Role) error {
	ro.Name = strings.TrimSpace(ro.Name)
	_, err := r.db.ExecContext(ctx,
		"UPDATE roles SET name=?, description=?, is_active=? WHERE id=? AND deleted_at IS NULL",
		ro.Name, ro.Description, ro.IsActive, ro.ID)
	if isDuplicate(err) {
		return ErrRoleNameExists
	}
	return err
}

// SoftDelete marks the role deleted.
func (r *RoleRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE roles SET deleted_at=UTC_TIMESTAMP() WHERE id=? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Restore reverses a soft delete.
func (r *RoleRepo) Restore(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE roles SET deleted_at=NULL WHERE id=? AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// PermanentDelete removes the role and its junction rows (assignments and
// task attachments) in one transaction.
func (r *RoleRepo) PermanentDelete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE role_id=?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM role_tasks WHERE role_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE id=?", id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fieldprep/exercise-hub/internal/model"
)

// TaskRepo encapsulates queries against the `tasks` table and its
// `role_tasks` junction with roles.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo constructs a TaskRepo with the provided DB handle.
func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{db: db} }

const taskColumns = "id, title, description, is_active, created_at, updated_at, deleted_at"

// Create inserts a task and populates its ID.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO tasks (title, description, is_active) VALUES (?,?,?)",
		t.Title, t.Description, t.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// FindByID fetches a task by id, optionally including soft-deleted rows.
func (r *TaskRepo) FindByID(ctx context.Context, id uint64, includeDeleted bool) (*model.Task, error) {
	q := "SELECT " + taskColumns + " FROM tasks WHERE id=?"
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	var t model.Task
	err := r.db.QueryRowContext(ctx, q+" LIMIT 1", id).
		Scan(&t.ID, &t.Title, &t.Description, &t.IsActive, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns a page of tasks plus the total match count.
func (r *TaskRepo) List(ctx context.Context, q ListQuery) ([]model.Task, int, error) {
	q = q.Normalize()
	where := "WHERE 1=1"
	args := []interface{}{}
	if !q.IncludeDeleted {
		where += " AND deleted_at IS NULL"
	}
	if q.Search != "" {
		where += " AND title LIKE ?"
		args = append(args, "%"+q.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.IsActive,
			&t.CreatedAt, &t.UpdatedAt, &t.DeletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// Update writes title, description and active flag.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	t.Title = strings.TrimSpace(t.Title)
	_, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET title=?, description=?, is_active=? WHERE id=? AND deleted_at IS NULL",
		t.Title, t.Description, t.IsActive, t.ID)
	return err
}

// SoftDelete marks the task deleted.
func (r *TaskRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET deleted_at=UTC_TIMESTAMP() WHERE id=? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Restore reverses a soft delete.
func (r *TaskRepo) Restore(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE tasks SET deleted_at=NULL WHERE id=? AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// PermanentDelete removes the task and its role attachments.
func (r *TaskRepo) PermanentDelete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM role_tasks WHERE task_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachRole links a task to a role; attaching twice is a no-op thanks to
// the composite primary key.
func (r *TaskRepo) AttachRole(ctx context.Context, taskID, roleID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT IGNORE INTO role_tasks (task_id, role_id) VALUES (?,?)", taskID, roleID)
	return err
}

// DetachRole unlinks a task from a role.
func (r *TaskRepo) DetachRole(ctx context.Context, taskID, roleID uint64) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM role_tasks WHERE task_id=? AND role_id=?", taskID, roleID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// RoleIDs returns the roles a task is attached to.
func (r *TaskRepo) RoleIDs(ctx context.Context, taskID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT role_id FROM role_tasks WHERE task_id=? ORDER BY role_id", taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

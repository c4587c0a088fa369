package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fieldprep/exercise-hub/internal/model"
)

// ExerciseRepo encapsulates queries against the `exercises` table. Users
// reference exercises through users.exercise_id (one exercise, many users).
type ExerciseRepo struct {
	db *sql.DB
}

// NewExerciseRepo constructs an ExerciseRepo with the provided DB handle.
func NewExerciseRepo(db *sql.DB) *ExerciseRepo { return &ExerciseRepo{db: db} }

const exerciseColumns = "id, name, starts_at, ends_at, status, created_at, updated_at, deleted_at"

// Create inserts an exercise and populates its ID.
func (r *ExerciseRepo) Create(ctx context.Context, e *model.Exercise) error {
	e.Name = strings.TrimSpace(e.Name)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO exercises (name, starts_at, ends_at, status) VALUES (?,?,?,?)",
		e.Name, e.StartsAt, e.EndsAt, e.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// FindByID fetches an exercise by id, optionally including soft-deleted rows.
func (r *ExerciseRepo) FindByID(ctx context.Context, id uint64, includeDeleted bool) (*model.Exercise, error) {
	q := "SELECT " + exerciseColumns + " FROM exercises WHERE id=?"
	if !includeDeleted {
		q += " AND deleted_at IS NULL"
	}
	var e model.Exercise
	err := r.db.QueryRowContext(ctx, q+" LIMIT 1", id).
		Scan(&e.ID, &e.Name, &e.StartsAt, &e.EndsAt, &e.Status, &e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns a page of exercises plus the total match count.
func (r *ExerciseRepo) List(ctx context.Context, q ListQuery) ([]model.Exercise, int, error) {
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
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exercises "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+exerciseColumns+" FROM exercises "+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []model.Exercise
	for rows.Next() {
		var e model.Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.StartsAt, &e.EndsAt, &e.Status,
			&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Update writes name, schedule and status.
func (r *ExerciseRepo) Update(ctx context.Context, e *model.Exercise) error {
	e.Name = strings.TrimSpace(e.Name)
	_, err := r.db.ExecContext(ctx,
		"UPDATE exercises SET name=?, starts_at=?, ends_at=?, status=? WHERE id=? AND deleted_at IS NULL",
		e.Name, e.StartsAt, e.EndsAt, e.Status, e.ID)
	return err
}

// SoftDelete marks the exercise deleted.
func (r *ExerciseRepo) SoftDelete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE exercises SET deleted_at=UTC_TIMESTAMP() WHERE id=? AND deleted_at IS NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// Restore reverses a soft delete.
func (r *ExerciseRepo) Restore(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE exercises SET deleted_at=NULL WHERE id=? AND deleted_at IS NOT NULL", id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// PermanentDelete removes the exercise, detaching affiliated users first so
// no dangling exercise_id references survive.
func (r *ExerciseRepo) PermanentDelete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "UPDATE users SET exercise_id=NULL WHERE exercise_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM exercises WHERE id=?", id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/middleware"
	"github.com/fieldprep/exercise-hub/internal/model"
	"github.com/fieldprep/exercise-hub/internal/repository"
)

// ExerciseHandler implements exercise CRUD.
type ExerciseHandler struct {
	Exercises *repository.ExerciseRepo
}

func NewExerciseHandler(exercises *repository.ExerciseRepo) *ExerciseHandler {
	return &ExerciseHandler{Exercises: exercises}
}

type exerciseReq struct {
	Name     string    `json:"name" validate:"required,min=1,max=200"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
	Status   string    `json:"status" validate:"omitempty,oneof=active closed"`
}

func exerciseView(e *model.Exercise) echo.Map {
	return echo.Map{
		"id":         e.ID,
		"name":       e.Name,
		"starts_at":  e.StartsAt,
		"ends_at":    e.EndsAt,
		"status":     e.Status,
		"created_at": e.CreatedAt,
		"updated_at": e.UpdatedAt,
		"deleted_at": e.DeletedAt,
	}
}

// List returns a page of exercises.
func (h *ExerciseHandler) List(c echo.Context) error {
	p, _ := middleware.CurrentPrincipal(c)
	q := parseListQuery(c, p != nil && p.IsAdmin())
	items, total, err := h.Exercises.List(c.Request().Context(), q)
	if err != nil {
		return failInternal(c, "list exercises failed")
	}
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		out = append(out, exerciseView(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "exercises": out, "meta": pageMeta(q, total)})
}

// Get returns one exercise.
func (h *ExerciseHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid exercise id")
	}
	e, err := h.Exercises.FindByID(c.Request().Context(), id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "exercise")
		}
		return failInternal(c, "load exercise failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "exercise": exerciseView(e)})
}

// Create inserts an exercise. Admin only; the date range must be ordered.
func (h *ExerciseHandler) Create(c echo.Context) error {
	var req exerciseReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "name, starts_at and ends_at are required; status must be active or closed")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return failValidation(c, "ends_at must be after starts_at")
	}
	status := req.Status
	if status == "" {
		status = model.ExerciseStatusActive
	}
	e := &model.Exercise{Name: req.Name, StartsAt: req.StartsAt, EndsAt: req.EndsAt, Status: status}
	if err := h.Exercises.Create(c.Request().Context(), e); err != nil {
		return failInternal(c, "create exercise failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "exercise": exerciseView(e)})
}

// Update modifies an exercise. Admin only.
func (h *ExerciseHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid exercise id")
	}
	var req exerciseReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "name, starts_at and ends_at are required; status must be active or closed")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return failValidation(c, "ends_at must be after starts_at")
	}

	ctx := c.Request().Context()
	e, err := h.Exercises.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "exercise")
		}
		return failInternal(c, "load exercise failed")
	}
	e.Name = req.Name
	e.StartsAt = req.StartsAt
	e.EndsAt = req.EndsAt
	if req.Status != "" {
		e.Status = req.Status
	}
	if err := h.Exercises.Update(ctx, e); err != nil {
		return failInternal(c, "update exercise failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "exercise": exerciseView(e)})
}

// Delete soft-deletes an exercise. Admin only.
func (h *ExerciseHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid exercise id")
	}
	if err := h.Exercises.SoftDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "exercise")
		}
		return failInternal(c, "delete exercise failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Restore reverses a soft delete. Admin only.
func (h *ExerciseHandler) Restore(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid exercise id")
	}
	if err := h.Exercises.Restore(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "exercise")
		}
		return failInternal(c, "restore exercise failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// PermanentDelete removes an exercise and detaches affiliated users.
// Admin only.
func (h *ExerciseHandler) PermanentDelete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid exercise id")
	}
	if err := h.Exercises.PermanentDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "exercise")
		}
		return failInternal(c, "permanent delete failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

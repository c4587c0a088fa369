package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/middleware"
	"github.com/fieldprep/exercise-hub/internal/model"
	"github.com/fieldprep/exercise-hub/internal/repository"
)

// TaskHandler implements task CRUD and the task-role attachments.
type TaskHandler struct {
	Tasks *repository.TaskRepo
	Roles *repository.RoleRepo
}

func NewTaskHandler(tasks *repository.TaskRepo, roles *repository.RoleRepo) *TaskHandler {
	return &TaskHandler{Tasks: tasks, Roles: roles}
}

type taskReq struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	IsActive    *bool  `json:"is_active"`
}

type attachRoleReq struct {
	RoleID uint64 `json:"role_id" validate:"required"`
}

func taskView(t *model.Task) echo.Map {
	return echo.Map{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"is_active":   t.IsActive,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
		"deleted_at":  t.DeletedAt,
	}
}

// List returns a page of tasks.
func (h *TaskHandler) List(c echo.Context) error {
	p, _ := middleware.CurrentPrincipal(c)
	q := parseListQuery(c, p != nil && p.IsAdmin())
	tasks, total, err := h.Tasks.List(c.Request().Context(), q)
	if err != nil {
		return failInternal(c, "list tasks failed")
	}
	items := make([]echo.Map, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskView(&tasks[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tasks": items, "meta": pageMeta(q, total)})
}

// Get returns one task with its attached role ids.
func (h *TaskHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	ctx := c.Request().Context()
	t, err := h.Tasks.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "task")
		}
		return failInternal(c, "load task failed")
	}
	roleIDs, err := h.Tasks.RoleIDs(ctx, id)
	if err != nil {
		return failInternal(c, "load task roles failed")
	}
	v := taskView(t)
	v["role_ids"] = roleIDs
	return c.JSON(http.StatusOK, echo.Map{"success": true, "task": v})
}

// Create inserts a task. Admin only.
func (h *TaskHandler) Create(c echo.Context) error {
	var req taskReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "title must be 1-200 characters")
	}
	t := &model.Task{Title: req.Title, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := h.Tasks.Create(c.Request().Context(), t); err != nil {
		return failInternal(c, "create task failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "task": taskView(t)})
}

// Update modifies a task. Admin only.
func (h *TaskHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	var req taskReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "title must be 1-200 characters")
	}

	ctx := c.Request().Context()
	t, err := h.Tasks.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "task")
		}
		return failInternal(c, "load task failed")
	}
	t.Title = req.Title
	t.Description = req.Description
	if req.IsActive != nil {
		t.IsActive = *req.IsActive
	}
	if err := h.Tasks.Update(ctx, t); err != nil {
		return failInternal(c, "update task failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "task": taskView(t)})
}

// Delete soft-deletes a task. Admin only.
func (h *TaskHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	if err := h.Tasks.SoftDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "task")
		}
		return failInternal(c, "delete task failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Restore reverses a soft delete. Admin only.
func (h *TaskHandler) Restore(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	if err := h.Tasks.Restore(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "task")
		}
		return failInternal(c, "restore task failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// PermanentDelete removes a task and its role attachments. Admin only.
func (h *TaskHandler) PermanentDelete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	if err := h.Tasks.PermanentDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "task")
		}
		return failInternal(c, "permanent delete failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// AttachRole links the task to a role. Admin only; attaching an already
// linked pair is a no-op.
func (h *TaskHandler) AttachRole(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	var req attachRoleReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "role_id is required")
	}

	ctx := c.Request().Context()
	if _, err := h.Tasks.FindByID(ctx, id, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "task")
		}
		return failInternal(c, "load task failed")
	}
	if _, err := h.Roles.FindByID(ctx, req.RoleID, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "load role failed")
	}
	if err := h.Tasks.AttachRole(ctx, id, req.RoleID); err != nil {
		return failInternal(c, "attach role failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true})
}

// DetachRole unlinks the task from a role. Admin only.
func (h *TaskHandler) DetachRole(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid task id")
	}
	roleID, ok := parseID(c, "roleId")
	if !ok {
		return failValidation(c, "invalid role id")
	}
	if err := h.Tasks.DetachRole(c.Request().Context(), id, roleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "attachment")
		}
		return failInternal(c, "detach role failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

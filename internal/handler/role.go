package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/middleware"
	"github.com/fieldprep/exercise-hub/internal/model"
	"github.com/fieldprep/exercise-hub/internal/repository"
)

// RoleHandler implements role CRUD. Reserved names can never be created
// through the API; protected roles (admin, super_admin) refuse
// deactivation, renaming and deletion so an admin cannot saw off the
// branch everyone is sitting on.
type RoleHandler struct {
	Roles *repository.RoleRepo
	Audit *audit.Recorder
}

func NewRoleHandler(roles *repository.RoleRepo, rec *audit.Recorder) *RoleHandler {
	return &RoleHandler{Roles: roles, Audit: rec}
}

type roleReq struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

func roleView(ro *model.Role) echo.Map {
	return echo.Map{
		"id":          ro.ID,
		"name":        ro.Name,
		"description": ro.Description,
		"is_active":   ro.IsActive,
		"created_at":  ro.CreatedAt,
		"updated_at":  ro.UpdatedAt,
		"deleted_at":  ro.DeletedAt,
	}
}

// List returns a page of roles. Any authenticated principal may read.
func (h *RoleHandler) List(c echo.Context) error {
	p, _ := middleware.CurrentPrincipal(c)
	q := parseListQuery(c, p != nil && p.IsAdmin())
	roles, total, err := h.Roles.List(c.Request().Context(), q)
	if err != nil {
		return failInternal(c, "list roles failed")
	}
	items := make([]echo.Map, 0, len(roles))
	for i := range roles {
		items = append(items, roleView(&roles[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "roles": items, "meta": pageMeta(q, total)})
}

// Get returns one role.
func (h *RoleHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid role id")
	}
	ro, err := h.Roles.FindByID(c.Request().Context(), id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "load role failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "role": roleView(ro)})
}

// Create inserts a new role. Admin only; reserved names are rejected.
func (h *RoleHandler) Create(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "name must be 2-64 characters")
	}
	if model.IsReservedRoleName(req.Name) {
		return failValidation(c, "role name is reserved")
	}

	ro := &model.Role{Name: req.Name, Description: req.Description, IsActive: true}
	if req.IsActive != nil {
		ro.IsActive = *req.IsActive
	}
	if err := h.Roles.Create(c.Request().Context(), ro); err != nil {
		if errors.Is(err, repository.ErrRoleNameExists) {
			return fail(c, http.StatusConflict, "conflict", "role name already exists", "CONFLICT")
		}
		return failInternal(c, "create role failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "role": roleView(ro)})
}

// Update modifies a role. Admin only. Protected roles keep their name and
// stay active; new names may not collide with the reserved set.
func (h *RoleHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid role id")
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "name must be 2-64 characters")
	}

	ctx := c.Request().Context()
	ro, err := h.Roles.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "load role failed")
	}

	if model.IsProtectedRoleName(ro.Name) {
		if !equalFoldTrim(req.Name, ro.Name) {
			return fail(c, http.StatusConflict, "conflict", "protected role cannot be renamed", "CONFLICT")
		}
		if req.IsActive != nil && !*req.IsActive {
			return fail(c, http.StatusConflict, "conflict", "protected role cannot be deactivated", "CONFLICT")
		}
	} else if model.IsReservedRoleName(req.Name) {
		return failValidation(c, "role name is reserved")
	}

	ro.Name = req.Name
	ro.Description = req.Description
	if req.IsActive != nil {
		ro.IsActive = *req.IsActive
	}
	if err := h.Roles.Update(ctx, ro); err != nil {
		if errors.Is(err, repository.ErrRoleNameExists) {
			return fail(c, http.StatusConflict, "conflict", "role name already exists", "CONFLICT")
		}
		return failInternal(c, "update role failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "role": roleView(ro)})
}

// Delete soft-deletes a role. Admin only; protected roles refuse.
func (h *RoleHandler) Delete(c echo.Context) error {
	return h.deleteRole(c, false)
}

// PermanentDelete removes a role and its junction rows. Admin only;
// protected roles refuse.
func (h *RoleHandler) PermanentDelete(c echo.Context) error {
	return h.deleteRole(c, true)
}

func (h *RoleHandler) deleteRole(c echo.Context, permanent bool) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid role id")
	}
	ctx := c.Request().Context()
	ro, err := h.Roles.FindByID(ctx, id, permanent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "load role failed")
	}
	if model.IsProtectedRoleName(ro.Name) {
		return fail(c, http.StatusConflict, "conflict", "protected role cannot be deleted", "CONFLICT")
	}
	if permanent {
		err = h.Roles.PermanentDelete(ctx, id)
	} else {
		err = h.Roles.SoftDelete(ctx, id)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "delete role failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Restore reverses a soft delete. Admin only.
func (h *RoleHandler) Restore(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid role id")
	}
	if err := h.Roles.Restore(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "restore role failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

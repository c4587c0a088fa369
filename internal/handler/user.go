package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/middleware"
	"github.com/fieldprep/exercise-hub/internal/model"
	"github.com/fieldprep/exercise-hub/internal/repository"
)

// UserHandler implements user CRUD, password changes and role assignment.
// Mutations are admin-only except profile/password updates, which follow
// the self-or-admin rule plus the self-escalation guard.
type UserHandler struct {
	Users       *repository.UserRepo
	Roles       *repository.RoleRepo
	Exercises   *repository.ExerciseRepo
	Assignments *repository.AssignmentRepo
	Audit       *audit.Recorder
	BcryptCost  int
}

func NewUserHandler(users *repository.UserRepo, roles *repository.RoleRepo, exercises *repository.ExerciseRepo, assignments *repository.AssignmentRepo, rec *audit.Recorder, bcryptCost int) *UserHandler {
	return &UserHandler{
		Users: users, Roles: roles, Exercises: exercises, Assignments: assignments,
		Audit: rec, BcryptCost: bcryptCost,
	}
}

// ----- DTOs -----

type createUserReq struct {
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,min=6,max=128"`
	Name       string  `json:"name" validate:"required,max=120"`
	IsActive   *bool   `json:"is_active"`
	ExerciseID *uint64 `json:"exercise_id"`
}

type updateUserReq struct {
	Email          *string    `json:"email" validate:"omitempty,email"`
	Name           *string    `json:"name" validate:"omitempty,min=1,max=120"`
	IsActive       *bool      `json:"is_active"`
	ExerciseID     *uint64    `json:"exercise_id"`
	FailedAttempts *int       `json:"failed_attempts" validate:"omitempty,gte=0"`
	LockedUntil    *time.Time `json:"locked_until"`
}

// fields lists the names of the fields present in the update, matching the
// wire names checked by the self-escalation guard.
func (r updateUserReq) fields() []string {
	var out []string
	if r.Email != nil {
		out = append(out, "email")
	}
	if r.Name != nil {
		out = append(out, "name")
	}
	if r.IsActive != nil {
		out = append(out, "is_active")
	}
	if r.ExerciseID != nil {
		out = append(out, "exercise_id")
	}
	if r.FailedAttempts != nil {
		out = append(out, "failed_attempts")
	}
	if r.LockedUntil != nil {
		out = append(out, "locked_until")
	}
	return out
}

type changePasswordReq struct {
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type assignRoleReq struct {
	RoleID    uint64     `json:"role_id" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes" validate:"max=500"`
}

// userView is the public shape of a user; the password hash and lockout
// internals stay server-side except for admins.
func userView(u *model.User) echo.Map {
	return echo.Map{
		"id":          u.ID,
		"email":       u.Email,
		"name":        u.Name,
		"is_active":   u.IsActive,
		"exercise_id": u.ExerciseID,
		"lastLoginAt": u.LastLoginAt,
		"created_at":  u.CreatedAt,
		"updated_at":  u.UpdatedAt,
		"deleted_at":  u.DeletedAt,
	}
}

func adminUserView(u *model.User) echo.Map {
	v := userView(u)
	v["failed_attempts"] = u.FailedAttempts
	v["locked_until"] = u.LockedUntil
	return v
}

// ----- Handlers -----

// List returns a page of users. Admin only.
func (h *UserHandler) List(c echo.Context) error {
	q := parseListQuery(c, true)
	users, total, err := h.Users.List(c.Request().Context(), q)
	if err != nil {
		return failInternal(c, "list users failed")
	}
	items := make([]echo.Map, 0, len(users))
	for i := range users {
		items = append(items, adminUserView(&users[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "users": items, "meta": pageMeta(q, total)})
}

// Create inserts a new user. Admin only.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "email must be valid, password 6-128 characters, name required")
	}

	ctx := c.Request().Context()
	if req.ExerciseID != nil {
		if _, err := h.Exercises.FindByID(ctx, *req.ExerciseID, false); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return failValidation(c, "exercise does not exist")
			}
			return failInternal(c, "exercise lookup failed")
		}
	}

	u := &model.User{
		Email:      req.Email,
		Name:       req.Name,
		IsActive:   true,
		ExerciseID: req.ExerciseID,
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if err := h.Users.Create(ctx, u, req.Password, h.BcryptCost); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "conflict", "email already exists", "CONFLICT")
		}
		return failInternal(c, "create user failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "user": adminUserView(u)})
}

// Get returns one user. Self or admin.
func (h *UserHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	p, _ := middleware.CurrentPrincipal(c)
	decision := auth.CanModify(p, id)
	if !decision.Allowed() {
		h.recordDenied(c, p)
		return fail(c, http.StatusForbidden, "authorization", "insufficient permissions", "FORBIDDEN")
	}

	u, err := h.Users.FindByID(c.Request().Context(), id, decision.IsAdmin && c.QueryParam("include_deleted") == "true")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "load user failed")
	}
	if decision.IsAdmin {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "user": adminUserView(u)})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": userView(u)})
}

// Update modifies profile fields. Self or admin; a non-admin touching
// restricted fields on their own record is rejected with the offending
// field names.
func (h *UserHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	p, _ := middleware.CurrentPrincipal(c)
	decision := auth.CanModify(p, id)
	if !decision.Allowed() {
		h.recordDenied(c, p)
		return fail(c, http.StatusForbidden, "authorization", "insufficient permissions", "FORBIDDEN")
	}

	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "invalid field values")
	}

	if offending := auth.SelfEscalationFields(p, id, req.fields()); len(offending) > 0 {
		h.Audit.Record(audit.Event{
			Kind: audit.KindSelfEscalation, ThreatLevel: audit.ThreatHigh,
			UserID: p.ID, Email: p.Email, IP: c.RealIP(), Endpoint: c.Path(),
			Detail: "restricted fields: " + strings.Join(offending, ","),
		})
		return c.JSON(http.StatusForbidden, echo.Map{
			"success": false, "error": "authorization",
			"message": "cannot modify restricted fields on own account", "code": "FORBIDDEN",
			"fields": offending,
		})
	}

	ctx := c.Request().Context()
	u, err := h.Users.FindByID(ctx, id, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "load user failed")
	}

	if req.Email != nil {
		u.Email = *req.Email
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if req.ExerciseID != nil {
		if _, err := h.Exercises.FindByID(ctx, *req.ExerciseID, false); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return failValidation(c, "exercise does not exist")
			}
			return failInternal(c, "exercise lookup failed")
		}
		u.ExerciseID = req.ExerciseID
	}

	if err := h.Users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return fail(c, http.StatusConflict, "conflict", "email already exists", "CONFLICT")
		}
		return failInternal(c, "update user failed")
	}

	// Lock-state overrides are admin-only and go through their own path.
	if req.FailedAttempts != nil || req.LockedUntil != nil {
		attempts := u.FailedAttempts
		if req.FailedAttempts != nil {
			attempts = *req.FailedAttempts
		}
		until := u.LockedUntil
		if req.LockedUntil != nil {
			until = req.LockedUntil
		}
		if err := h.Users.SetLockState(ctx, id, attempts, until); err != nil {
			return failInternal(c, "update lock state failed")
		}
	}

	u, err = h.Users.FindByID(ctx, id, false)
	if err != nil {
		return failInternal(c, "reload user failed")
	}
	if decision.IsAdmin {
		return c.JSON(http.StatusOK, echo.Map{"success": true, "user": adminUserView(u)})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": userView(u)})
}

// UpdatePassword sets a new password. Self or admin; the hash is rewritten
// only here and at creation, never on plain updates.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	p, _ := middleware.CurrentPrincipal(c)
	if !auth.CanModify(p, id).Allowed() {
		h.recordDenied(c, p)
		return fail(c, http.StatusForbidden, "authorization", "insufficient permissions", "FORBIDDEN")
	}

	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "password must be 6-128 characters")
	}

	ctx := c.Request().Context()
	if _, err := h.Users.FindByID(ctx, id, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "load user failed")
	}
	if err := h.Users.UpdatePassword(ctx, id, req.Password, h.BcryptCost); err != nil {
		return failInternal(c, "update password failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Delete soft-deletes a user. Admin only.
func (h *UserHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	if err := h.Users.SoftDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "delete user failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// Restore reverses a soft delete. Admin only.
func (h *UserHandler) Restore(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	if err := h.Users.Restore(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "restore user failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// PermanentDelete removes a user and their assignments for good. Admin only.
func (h *UserHandler) PermanentDelete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	if err := h.Users.PermanentDelete(c.Request().Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "permanent delete failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// AssignRole grants a role to a user; re-assigning a revoked pair
// reactivates it. Admin only.
func (h *UserHandler) AssignRole(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	var req assignRoleReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if err := validate.Struct(req); err != nil {
		return failValidation(c, "role_id is required")
	}

	ctx := c.Request().Context()
	if _, err := h.Users.FindByID(ctx, id, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "user")
		}
		return failInternal(c, "load user failed")
	}
	role, err := h.Roles.FindByID(ctx, req.RoleID, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "role")
		}
		return failInternal(c, "load role failed")
	}

	p, _ := middleware.CurrentPrincipal(c)
	assignedBy := p.ID
	a := &model.RoleAssignment{
		UserID:     id,
		RoleID:     role.ID,
		AssignedBy: &assignedBy,
		ExpiresAt:  req.ExpiresAt,
		Notes:      req.Notes,
	}
	if err := h.Assignments.Assign(ctx, a); err != nil {
		return failInternal(c, "assign role failed")
	}

	// Answer with the stored row; on a reactivation the assigned_at and
	// notes come from the upsert, not the original grant.
	stored, err := h.Assignments.Find(ctx, id, role.ID)
	if err != nil {
		return failInternal(c, "load assignment failed")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "assignment": echo.Map{
		"user_id":     stored.UserID,
		"role_id":     stored.RoleID,
		"role":        role.Name,
		"assigned_at": stored.AssignedAt,
		"assigned_by": stored.AssignedBy,
		"is_active":   stored.IsActive,
		"expires_at":  stored.ExpiresAt,
		"notes":       stored.Notes,
	}})
}

// RevokeRole deactivates an assignment. Admin only.
func (h *UserHandler) RevokeRole(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	roleID, ok := parseID(c, "roleId")
	if !ok {
		return failValidation(c, "invalid role id")
	}
	if err := h.Assignments.Revoke(c.Request().Context(), id, roleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return failNotFound(c, "assignment")
		}
		return failInternal(c, "revoke role failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ListAssignments returns every assignment row for a user, including
// revoked and expired ones. Admin only.
func (h *UserHandler) ListAssignments(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return failValidation(c, "invalid user id")
	}
	items, err := h.Assignments.ListForUser(c.Request().Context(), id)
	if err != nil {
		return failInternal(c, "list assignments failed")
	}
	now := time.Now().UTC()
	out := make([]echo.Map, 0, len(items))
	for i := range items {
		a := &items[i]
		out = append(out, echo.Map{
			"user_id":     a.UserID,
			"role_id":     a.RoleID,
			"assigned_at": a.AssignedAt,
			"assigned_by": a.AssignedBy,
			"is_active":   a.IsActive,
			"expires_at":  a.ExpiresAt,
			"notes":       a.Notes,
			"effective":   a.Effective(now),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "assignments": out})
}

func (h *UserHandler) recordDenied(c echo.Context, p *auth.Principal) {
	h.Audit.Record(audit.Event{
		Kind: audit.KindAccessDenied, ThreatLevel: audit.ThreatMedium,
		UserID: p.ID, Email: p.Email, IP: c.RealIP(), Endpoint: c.Path(),
	})
}

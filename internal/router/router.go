// Package router wires HTTP routes to handlers and middleware. Route
// groups mirror the access tiers: public, documentation-token, API-token,
// and admin.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/handler"
)

// Middleware bundles the prebuilt middleware functions the routes need.
type Middleware struct {
	APIAuth      echo.MiddlewareFunc // bearer token + account re-check
	RequireAdmin echo.MiddlewareFunc // admin / super_admin only
	DocsAuth     echo.MiddlewareFunc // documentation token only
	LoginLimit   echo.MiddlewareFunc // redis token bucket for /auth/login
	Cache        echo.MiddlewareFunc // redis response cache for reads
}

// Handlers bundles every handler the router mounts.
type Handlers struct {
	Auth      *handler.AuthHandler
	Docs      *handler.DocsHandler
	Users     *handler.UserHandler
	Roles     *handler.RoleHandler
	Tasks     *handler.TaskHandler
	Exercises *handler.ExerciseHandler
}

// RegisterRoutes registers the unauthenticated surface: the health check,
// login and the swagger-token exchange.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middleware) {
	e.GET("/healthz", handler.Health)

	g := e.Group("/v1/auth")
	g.POST("/login", h.Auth.Login, mw.LoginLimit)

	e.POST("/v1/swagger/token", h.Docs.Token)
	e.GET("/v1/docs/ping", h.Docs.Ping, mw.DocsAuth)
}

// RegisterProtected registers every route behind the API token. Reads are
// open to any authenticated principal; self-or-admin checks live inside
// the user handler, and mutations sit behind RequireAdmin.
func RegisterProtected(e *echo.Echo, h Handlers, mw Middleware) {
	v1 := e.Group("/v1", mw.APIAuth)

	v1.GET("/me", h.Auth.Me)

	// Reads for any authenticated principal. List endpoints share the
	// response cache; entries are segmented by privilege tier so an
	// admin's include_deleted listing is never replayed to a non-admin.
	v1.GET("/roles", h.Roles.List, mw.Cache)
	v1.GET("/roles/:id", h.Roles.Get)
	v1.GET("/tasks", h.Tasks.List, mw.Cache)
	v1.GET("/tasks/:id", h.Tasks.Get)
	v1.GET("/exercises", h.Exercises.List, mw.Cache)
	v1.GET("/exercises/:id", h.Exercises.Get)

	// Self-or-admin; the handler enforces ownership and the
	// self-escalation guard.
	v1.GET("/users/:id", h.Users.Get)
	v1.PUT("/users/:id", h.Users.Update)
	v1.PUT("/users/:id/password", h.Users.UpdatePassword)

	admin := v1.Group("", mw.RequireAdmin)

	admin.GET("/users", h.Users.List)
	admin.POST("/users", h.Users.Create)
	admin.DELETE("/users/:id", h.Users.Delete)
	admin.POST("/users/:id/restore", h.Users.Restore)
	admin.DELETE("/users/:id/permanent", h.Users.PermanentDelete)

	admin.GET("/users/:id/roles", h.Users.ListAssignments)
	admin.POST("/users/:id/roles", h.Users.AssignRole)
	admin.DELETE("/users/:id/roles/:roleId", h.Users.RevokeRole)

	admin.POST("/roles", h.Roles.Create)
	admin.PUT("/roles/:id", h.Roles.Update)
	admin.DELETE("/roles/:id", h.Roles.Delete)
	admin.POST("/roles/:id/restore", h.Roles.Restore)
	admin.DELETE("/roles/:id/permanent", h.Roles.PermanentDelete)

	admin.POST("/tasks", h.Tasks.Create)
	admin.PUT("/tasks/:id", h.Tasks.Update)
	admin.DELETE("/tasks/:id", h.Tasks.Delete)
	admin.POST("/tasks/:id/restore", h.Tasks.Restore)
	admin.DELETE("/tasks/:id/permanent", h.Tasks.PermanentDelete)
	admin.POST("/tasks/:id/roles", h.Tasks.AttachRole)
	admin.DELETE("/tasks/:id/roles/:roleId", h.Tasks.DetachRole)

	admin.POST("/exercises", h.Exercises.Create)
	admin.PUT("/exercises/:id", h.Exercises.Update)
	admin.DELETE("/exercises/:id", h.Exercises.Delete)
	admin.POST("/exercises/:id/restore", h.Exercises.Restore)
	admin.DELETE("/exercises/:id/permanent", h.Exercises.PermanentDelete)
}

package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
)

// RequireRoles enforces that the authenticated principal's effective role
// set intersects the allowed set. It must run after APIAuth. Denials carry
// the required and current role names in the payload for diagnosability;
// role names are not secrets.
func RequireRoles(rec *audit.Recorder, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false, "error": "authentication",
					"message": "missing bearer token", "code": "UNAUTHORIZED",
				})
			}
			if !p.HasAnyRole(roles...) {
				rec.Record(audit.Event{
					Kind: audit.KindAccessDenied, ThreatLevel: audit.ThreatMedium,
					UserID: p.ID, Email: p.Email, IP: c.RealIP(), Endpoint: c.Path(),
				})
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false, "error": "authorization",
					"message": "insufficient role", "code": "FORBIDDEN",
					"required": roles, "current": p.Roles,
				})
			}
			return next(c)
		}
	}
}

// RequireAdmin restricts a route to administrative principals.
func RequireAdmin(rec *audit.Recorder) echo.MiddlewareFunc {
	return RequireRoles(rec, auth.AdminRoles...)
}

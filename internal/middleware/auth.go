// Package middleware provides reusable HTTP middleware: bearer-token
// authorization, role enforcement, rate limiting and response caching.
package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/model"
)

// principalKey is the context key the authenticated principal is stored
// under. Handlers read it through CurrentPrincipal.
const principalKey = "principal"

// PrincipalStore is the slice of the user repository the authorization
// middleware needs to re-check account state on every request. The role
// list inside the token is never trusted for these checks.
type PrincipalStore interface {
	FindByID(ctx context.Context, id uint64, includeDeleted bool) (*model.User, error)
	EffectiveRoleNames(ctx context.Context, userID uint64, now time.Time) ([]string, error)
}

// CurrentPrincipal returns the principal attached by APIAuth.
func CurrentPrincipal(c echo.Context) (*auth.Principal, bool) {
	p, ok := c.Get(principalKey).(*auth.Principal)
	return p, ok
}

// APIAuth validates the bearer API token, then reloads the account and its
// currently effective roles from storage. A validly signed, unexpired
// token is still rejected when the account has since been deleted,
// deactivated or locked; tokens must not outlive account state changes.
func APIAuth(tokens *auth.TokenService, store PrincipalStore, rec *audit.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				rec.Record(audit.Event{
					Kind: audit.KindTokenMissing, ThreatLevel: audit.ThreatLow,
					IP: c.RealIP(), Endpoint: c.Path(),
				})
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false, "error": "authentication",
					"message": "missing bearer token", "code": "UNAUTHORIZED",
				})
			}

			claims, err := tokens.VerifyAPIToken(raw)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrSecretMissing):
					rec.Record(audit.Event{
						Kind: audit.KindConfigError, ThreatLevel: audit.ThreatHigh,
						IP: c.RealIP(), Endpoint: c.Path(), Detail: "api token secret not configured",
					})
					return c.JSON(http.StatusInternalServerError, echo.Map{
						"success": false, "error": "configuration",
						"message": "server is not configured for token verification", "code": "CONFIG_ERROR",
					})
				case errors.Is(err, auth.ErrTokenExpired):
					rec.Record(audit.Event{
						Kind: audit.KindTokenExpired, ThreatLevel: audit.ThreatLow,
						IP: c.RealIP(), Endpoint: c.Path(),
					})
					return c.JSON(http.StatusForbidden, echo.Map{
						"success": false, "error": "authentication",
						"message": "token expired", "code": "TOKEN_EXPIRED",
					})
				default:
					rec.Record(audit.Event{
						Kind: audit.KindTokenInvalid, ThreatLevel: audit.ThreatMedium,
						IP: c.RealIP(), Endpoint: c.Path(),
					})
					return c.JSON(http.StatusForbidden, echo.Map{
						"success": false, "error": "authentication",
						"message": "invalid token", "code": "FORBIDDEN",
					})
				}
			}

			ctx := c.Request().Context()
			now := time.Now().UTC()

			u, err := store.FindByID(ctx, claims.UserID, false)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					rec.Record(audit.Event{
						Kind: audit.KindTokenInvalid, ThreatLevel: audit.ThreatMedium,
						UserID: claims.UserID, IP: c.RealIP(), Endpoint: c.Path(),
						Detail: "token references missing account",
					})
					return c.JSON(http.StatusForbidden, echo.Map{
						"success": false, "error": "authentication",
						"message": "account no longer exists", "code": "FORBIDDEN",
					})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"success": false, "error": "internal", "message": "account lookup failed",
				})
			}

			if !u.IsActive {
				rec.Record(audit.Event{
					Kind: audit.KindAccountInactive, ThreatLevel: audit.ThreatMedium,
					UserID: u.ID, Email: u.Email, IP: c.RealIP(), Endpoint: c.Path(),
				})
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false, "error": "authentication",
					"message": "account is inactive", "code": "ACCOUNT_INACTIVE",
				})
			}
			if u.Locked(now) {
				rec.Record(audit.Event{
					Kind: audit.KindAccountLocked, ThreatLevel: audit.ThreatMedium,
					UserID: u.ID, Email: u.Email, IP: c.RealIP(), Endpoint: c.Path(),
				})
				return c.JSON(http.StatusLocked, echo.Map{
					"success": false, "error": "account_locked",
					"message": "account is locked", "code": "ACCOUNT_LOCKED",
					"lockedUntil": u.LockedUntil.UTC(),
				})
			}

			roles, err := store.EffectiveRoleNames(ctx, u.ID, now)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{
					"success": false, "error": "internal", "message": "role lookup failed",
				})
			}

			c.Set(principalKey, &auth.Principal{
				ID:         u.ID,
				Email:      u.Email,
				Name:       u.Name,
				Roles:      roles,
				IsActive:   u.IsActive,
				ExerciseID: u.ExerciseID,
			})
			return next(c)
		}
	}
}

// DocsAuth gates the documentation UI. It verifies signature and expiry of
// a documentation token only; docs tokens are not tied to a live account,
// so no state re-check happens here.
func DocsAuth(tokens *auth.TokenService, rec *audit.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"success": false, "error": "authentication",
					"message": "missing bearer token", "code": "UNAUTHORIZED",
				})
			}
			if err := tokens.VerifyDocsToken(raw); err != nil {
				if errors.Is(err, auth.ErrSecretMissing) {
					return c.JSON(http.StatusInternalServerError, echo.Map{
						"success": false, "error": "configuration",
						"message": "server is not configured for documentation tokens", "code": "CONFIG_ERROR",
					})
				}
				code := "FORBIDDEN"
				if errors.Is(err, auth.ErrTokenExpired) {
					code = "TOKEN_EXPIRED"
				}
				rec.Record(audit.Event{
					Kind: audit.KindTokenInvalid, ThreatLevel: audit.ThreatLow,
					IP: c.RealIP(), Endpoint: c.Path(), Detail: "docs token rejected",
				})
				return c.JSON(http.StatusForbidden, echo.Map{
					"success": false, "error": "authentication",
					"message": "invalid documentation token", "code": code,
				})
			}
			return next(c)
		}
	}
}

// bearerToken extracts the raw token from the Authorization header.
func bearerToken(c echo.Context) (string, bool) {
	h := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(h, "Bearer "), true
}

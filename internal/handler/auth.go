package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/middleware"
)

// AuthHandler bundles dependencies for the login endpoint and the
// authenticated profile lookup.
type AuthHandler struct {
	Auth  *auth.Authenticator
	Audit *audit.Recorder
}

func NewAuthHandler(a *auth.Authenticator, rec *audit.Recorder) *AuthHandler {
	return &AuthHandler{Auth: a, Audit: rec}
}

// Login runs the credential check and answers with an API token. Failures
// are terminal for the request; the response never reveals whether the
// email exists.
func (h *AuthHandler) Login(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}

	res, err := h.Auth.Login(c.Request().Context(), req)
	if err != nil {
		var vErr *auth.ValidationError
		var lockErr *auth.AccountLockedError
		switch {
		case errors.As(err, &vErr):
			h.Audit.Record(audit.Event{
				Kind: audit.KindLoginValidation, ThreatLevel: audit.ThreatNone,
				IP: c.RealIP(), Endpoint: c.Path(),
			})
			return failValidation(c, vErr.Message)
		case errors.As(err, &lockErr):
			h.Audit.Record(audit.Event{
				Kind: audit.KindAccountLocked, ThreatLevel: audit.ThreatHigh,
				Email: req.Email, IP: c.RealIP(), Endpoint: c.Path(),
			})
			return c.JSON(http.StatusLocked, echo.Map{
				"success": false, "error": "account_locked",
				"message": "account is temporarily locked", "code": "ACCOUNT_LOCKED",
				"lockedUntil": lockErr.Until.UTC(),
			})
		case errors.Is(err, auth.ErrInvalidCredentials):
			h.Audit.Record(audit.Event{
				Kind: audit.KindLoginFailed, ThreatLevel: audit.ThreatMedium,
				Email: req.Email, IP: c.RealIP(), Endpoint: c.Path(),
			})
			return fail(c, http.StatusUnauthorized, "authentication", "invalid credentials", "UNAUTHORIZED")
		case errors.Is(err, auth.ErrSecretMissing):
			h.Audit.Record(audit.Event{
				Kind: audit.KindConfigError, ThreatLevel: audit.ThreatHigh,
				IP: c.RealIP(), Endpoint: c.Path(), Detail: "api token secret not configured",
			})
			return fail(c, http.StatusInternalServerError, "configuration",
				"server is not configured for token issuance", "CONFIG_ERROR")
		default:
			return failInternal(c, "login failed")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"token":     res.Token,
		"expiresIn": "24h",
		"user": echo.Map{
			"id":          res.User.ID,
			"email":       res.User.Email,
			"name":        res.User.Name,
			"roles":       res.Roles,
			"lastLoginAt": res.User.LastLoginAt,
		},
	})
}

// Me returns the authenticated principal as seen by the authorization
// middleware: freshly loaded account state and effective roles.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication", "missing bearer token", "UNAUTHORIZED")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"user": echo.Map{
			"id":          p.ID,
			"email":       p.Email,
			"name":        p.Name,
			"roles":       p.Roles,
			"exercise_id": p.ExerciseID,
		},
	})
}

package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/config"
)

// DocsHandler exchanges a shared secret for a documentation token. The
// docs token gates the API documentation UI and is independent of user
// accounts.
type DocsHandler struct {
	Cfg    config.Config
	Tokens *auth.TokenService
	Audit  *audit.Recorder
}

func NewDocsHandler(cfg config.Config, tokens *auth.TokenService, rec *audit.Recorder) *DocsHandler {
	return &DocsHandler{Cfg: cfg, Tokens: tokens, Audit: rec}
}

type swaggerTokenReq struct {
	SwaggerSecret string `json:"swaggerSecret"`
}

// Token issues a documentation token when the presented shared secret
// matches the server's. Comparison is constant-time.
func (h *DocsHandler) Token(c echo.Context) error {
	var req swaggerTokenReq
	if err := c.Bind(&req); err != nil {
		return failValidation(c, "invalid body")
	}
	if h.Cfg.SwaggerSecret == "" {
		h.Audit.Record(audit.Event{
			Kind: audit.KindConfigError, ThreatLevel: audit.ThreatHigh,
			IP: c.RealIP(), Endpoint: c.Path(), Detail: "swagger access secret not configured",
		})
		return fail(c, http.StatusInternalServerError, "configuration",
			"documentation access is not configured", "CONFIG_ERROR")
	}
	if subtle.ConstantTimeCompare([]byte(req.SwaggerSecret), []byte(h.Cfg.SwaggerSecret)) != 1 {
		h.Audit.Record(audit.Event{
			Kind: audit.KindLoginFailed, ThreatLevel: audit.ThreatMedium,
			IP: c.RealIP(), Endpoint: c.Path(), Detail: "bad swagger secret",
		})
		return fail(c, http.StatusUnauthorized, "authentication", "invalid secret", "UNAUTHORIZED")
	}

	token, _, err := h.Tokens.IssueDocsToken()
	if err != nil {
		return fail(c, http.StatusInternalServerError, "configuration",
			"server is not configured for documentation tokens", "CONFIG_ERROR")
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "expiresIn": "24h"})
}

// Ping lives behind DocsAuth and lets the docs UI probe whether its token
// is still good.
func (h *DocsHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

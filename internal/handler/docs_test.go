package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/config"
)

func postSwaggerToken(t *testing.T, h *DocsHandler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/swagger/token", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Token(c))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func newDocsHandler(swaggerSecret string) *DocsHandler {
	cfg := config.Config{SwaggerSecret: swaggerSecret}
	tokens := auth.NewTokenService("api-secret", "docs-secret")
	return NewDocsHandler(cfg, tokens, audit.NewRecorder(zap.NewNop(), nil))
}

func TestSwaggerTokenExchange(t *testing.T) {
	h := newDocsHandler("open-sesame")

	rec, out := postSwaggerToken(t, h, `{"swaggerSecret":"open-sesame"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "24h", out["expiresIn"])

	// The issued token must verify in the docs namespace.
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)
	assert.NoError(t, h.Tokens.VerifyDocsToken(token))
	_, err := h.Tokens.VerifyAPIToken(token)
	assert.Error(t, err)
}

func TestSwaggerTokenWrongSecret(t *testing.T) {
	h := newDocsHandler("open-sesame")

	rec, out := postSwaggerToken(t, h, `{"swaggerSecret":"guess"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", out["code"])
}

func TestSwaggerTokenUnconfigured(t *testing.T) {
	h := newDocsHandler("")

	rec, out := postSwaggerToken(t, h, `{"swaggerSecret":"anything"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIG_ERROR", out["code"])
}

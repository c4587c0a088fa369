package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldprep/exercise-hub/internal/auth"
)

func callRequireAdmin(t *testing.T, p *auth.Principal) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/users", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p != nil {
		c.Set(principalKey, p)
	}

	h := RequireAdmin(testRecorder())(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	})
	require.NoError(t, h(c))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRequireAdminWithoutPrincipal(t *testing.T) {
	rec, body := callRequireAdmin(t, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
}

func TestRequireAdminDeniesViewer(t *testing.T) {
	rec, body := callRequireAdmin(t, &auth.Principal{ID: 5, Roles: []string{"viewer"}, IsActive: true})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
	// Denials name both sides so a caller can see what role is missing.
	assert.ElementsMatch(t, []interface{}{"admin", "super_admin"}, body["required"])
	assert.ElementsMatch(t, []interface{}{"viewer"}, body["current"])
}

func TestRequireAdminAllowsAdminRoles(t *testing.T) {
	for _, role := range auth.AdminRoles {
		rec, body := callRequireAdmin(t, &auth.Principal{ID: 5, Roles: []string{role}, IsActive: true})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
	}
}

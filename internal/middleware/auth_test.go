package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/model"
)

const testSecret = "mw-test-secret"

// fakePrincipalStore serves a single user for the authorization re-check.
type fakePrincipalStore struct {
	user  *model.User
	roles []string
}

func (s *fakePrincipalStore) FindByID(_ context.Context, id uint64, _ bool) (*model.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	u := *s.user
	return &u, nil
}

func (s *fakePrincipalStore) EffectiveRoleNames(_ context.Context, _ uint64, _ time.Time) ([]string, error) {
	return s.roles, nil
}

func testRecorder() *audit.Recorder {
	return audit.NewRecorder(zap.NewNop(), nil)
}

func callAPIAuth(t *testing.T, tokens *auth.TokenService, store PrincipalStore, header string) (*httptest.ResponseRecorder, map[string]interface{}, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	reachedNext := false
	h := APIAuth(tokens, store, testRecorder())(func(c echo.Context) error {
		reachedNext = true
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	})
	require.NoError(t, h(c))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body, reachedNext
}

func liveUser() *model.User {
	return &model.User{ID: 10, Email: "live@example.com", Name: "Live", IsActive: true}
}

func issueFor(t *testing.T, tokens *auth.TokenService, u *model.User, roles ...string) string {
	t.Helper()
	signed, _, err := tokens.IssueAPIToken(u.ID, u.Email, u.Name, roles)
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAPIAuthMissingHeader(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{}, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.False(t, next)
}

func TestAPIAuthInvalidToken(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{}, "Bearer garbage")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
	assert.False(t, next)
}

func TestAPIAuthExpiredToken(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	past := time.Now().UTC().Add(-time.Hour)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 10, "iat": past.Add(-time.Hour).Unix(), "exp": past.Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{}, "Bearer "+signed)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", body["code"])
	assert.False(t, next)
}

func TestAPIAuthMissingSecret(t *testing.T) {
	tokens := auth.NewTokenService("", "")
	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{}, "Bearer anything")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIG_ERROR", body["code"])
	assert.False(t, next)
}

func TestAPIAuthDeletedAccount(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	header := issueFor(t, tokens, liveUser())

	// Store has no such account anymore; the signed token alone is not
	// enough.
	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{}, header)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])
	assert.False(t, next)
}

func TestAPIAuthInactiveAccount(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	u := liveUser()
	header := issueFor(t, tokens, u)
	u.IsActive = false

	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{user: u}, header)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_INACTIVE", body["code"])
	assert.False(t, next)
}

func TestAPIAuthLockedAccount(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	u := liveUser()
	header := issueFor(t, tokens, u)
	until := time.Now().UTC().Add(15 * time.Minute)
	u.LockedUntil = &until

	rec, body, next := callAPIAuth(t, tokens, &fakePrincipalStore{user: u}, header)

	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "ACCOUNT_LOCKED", body["code"])
	assert.NotEmpty(t, body["lockedUntil"])
	assert.False(t, next)
}

func TestAPIAuthSuccessUsesStoredRoles(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "")
	u := liveUser()
	// Token claims admin, but the store says viewer; the store wins.
	header := issueFor(t, tokens, u, "admin")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
	req.Header.Set("Authorization", header)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen *auth.Principal
	h := APIAuth(tokens, &fakePrincipalStore{user: u, roles: []string{"viewer"}}, testRecorder())(func(c echo.Context) error {
		seen, _ = CurrentPrincipal(c)
		return c.JSON(http.StatusOK, echo.Map{"success": true})
	})
	require.NoError(t, h(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, u.ID, seen.ID)
	assert.Equal(t, []string{"viewer"}, seen.Roles)
	assert.False(t, seen.IsAdmin())
}

func TestDocsAuth(t *testing.T) {
	tokens := auth.NewTokenService(testSecret, "docs-secret")
	docsToken, _, err := tokens.IssueDocsToken()
	require.NoError(t, err)
	apiToken, _, err := tokens.IssueAPIToken(10, "x@y.z", "X", nil)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"api token rejected", "Bearer " + apiToken, http.StatusForbidden},
		{"docs token accepted", "Bearer " + docsToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/v1/docs/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := DocsAuth(tokens, testRecorder())(func(c echo.Context) error {
				return c.JSON(http.StatusOK, echo.Map{"success": true})
			})
			require.NoError(t, h(c))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

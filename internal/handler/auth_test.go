package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/model"
)

// loginStore is an in-memory auth.CredentialStore for endpoint tests.
type loginStore struct {
	user  *model.User
	roles []string
}

func (s *loginStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	u := *s.user
	return &u, nil
}

func (s *loginStore) RegisterFailedAttempt(_ context.Context, _ uint64, threshold int, lockFor time.Duration) (int, *time.Time, error) {
	s.user.FailedAttempts++
	if s.user.FailedAttempts >= threshold {
		until := time.Now().UTC().Add(lockFor)
		s.user.LockedUntil = &until
	}
	return s.user.FailedAttempts, s.user.LockedUntil, nil
}

func (s *loginStore) RecordLogin(_ context.Context, _ uint64, at time.Time) error {
	s.user.FailedAttempts = 0
	s.user.LockedUntil = nil
	s.user.LastLoginAt = &at
	return nil
}

func (s *loginStore) EffectiveRoleNames(_ context.Context, _ uint64, _ time.Time) ([]string, error) {
	return s.roles, nil
}

func newLoginHandler(store *loginStore, apiSecret string) *AuthHandler {
	a := auth.NewAuthenticator(store, auth.NewTokenService(apiSecret, ""), zap.NewNop())
	return NewAuthHandler(a, audit.NewRecorder(zap.NewNop(), nil))
}

func postLogin(t *testing.T, h *AuthHandler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Login(c))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func storeWithUser(t *testing.T, password string, roles ...string) *loginStore {
	t.Helper()
	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	return &loginStore{
		user: &model.User{
			ID: 1, Email: "user@example.com", Name: "User",
			PasswordHash: hash, IsActive: true,
		},
		roles: roles,
	}
}

func TestLoginEndpointSuccess(t *testing.T) {
	h := newLoginHandler(storeWithUser(t, "hunter2!", "viewer"), "secret")

	rec, out := postLogin(t, h, `{"email":"user@example.com","password":"hunter2!"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["token"])
	assert.Equal(t, "24h", out["expiresIn"])
	user := out["user"].(map[string]interface{})
	assert.Equal(t, "user@example.com", user["email"])
	assert.Equal(t, []interface{}{"viewer"}, user["roles"])
}

func TestLoginEndpointValidation(t *testing.T) {
	h := newLoginHandler(storeWithUser(t, "hunter2!"), "secret")

	rec, out := postLogin(t, h, `{"email":"nope","password":"123"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "VALIDATION_ERROR", out["code"])
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	h := newLoginHandler(storeWithUser(t, "hunter2!"), "secret")

	rec, out := postLogin(t, h, `{"email":"user@example.com","password":"wrong-password"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", out["code"])
	assert.Equal(t, "invalid credentials", out["message"])
}

func TestLoginEndpointUnknownEmailSameAnswer(t *testing.T) {
	h := newLoginHandler(storeWithUser(t, "hunter2!"), "secret")

	rec, out := postLogin(t, h, `{"email":"ghost@example.com","password":"whatever1"}`)

	// Indistinguishable from a wrong password.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", out["message"])
}

func TestLoginEndpointLockout(t *testing.T) {
	store := storeWithUser(t, "hunter2!")
	h := newLoginHandler(store, "secret")

	for i := 0; i < auth.FailedAttemptThreshold; i++ {
		rec, _ := postLogin(t, h, `{"email":"user@example.com","password":"wrong-password"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, out := postLogin(t, h, `{"email":"user@example.com","password":"hunter2!"}`)
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "ACCOUNT_LOCKED", out["code"])
	assert.NotEmpty(t, out["lockedUntil"])
}

func TestLoginEndpointMissingSecret(t *testing.T) {
	h := newLoginHandler(storeWithUser(t, "hunter2!"), "")

	rec, out := postLogin(t, h, `{"email":"user@example.com","password":"hunter2!"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "CONFIG_ERROR", out["code"])
}

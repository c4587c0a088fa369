package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldprep/exercise-hub/internal/audit"
	"github.com/fieldprep/exercise-hub/internal/repository"
)

func newRoleHandlerMock(t *testing.T) (*RoleHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRoleHandler(repository.NewRoleRepo(db), audit.NewRecorder(zap.NewNop(), nil)), mock
}

func roleMockRows(id uint64, name string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "is_active", "created_at", "updated_at", "deleted_at",
	}).AddRow(id, name, "", true, now, now, nil)
}

func doRole(t *testing.T, h func(echo.Context) error, method, path, body string, params ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}
	require.NoError(t, h(c))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestCreateRoleRejectsReservedNames(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	for _, name := range []string{"admin", "Super_Admin", " system ", "root"} {
		rec, out := doRole(t, h.Create, http.MethodPost, "/v1/roles", `{"name":"`+name+`"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Equal(t, "role name is reserved", out["message"], name)
	}
	// Reserved names never reach the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleDuplicateName(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	mock.ExpectExec("INSERT INTO roles").
		WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'editor' for key 'roles.name'"))

	rec, out := doRole(t, h.Create, http.MethodPost, "/v1/roles", `{"name":"editor"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", out["code"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProtectedRoleCannotBeRenamed(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	mock.ExpectQuery("SELECT .+ FROM roles WHERE id=\\?").
		WithArgs(uint64(1)).
		WillReturnRows(roleMockRows(1, "admin"))

	rec, out := doRole(t, h.Update, http.MethodPut, "/v1/roles/1", `{"name":"overlord"}`, "id", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "protected role cannot be renamed", out["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProtectedRoleCannotBeDeactivated(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	mock.ExpectQuery("SELECT .+ FROM roles WHERE id=\\?").
		WithArgs(uint64(1)).
		WillReturnRows(roleMockRows(1, "super_admin"))

	rec, out := doRole(t, h.Update, http.MethodPut, "/v1/roles/1", `{"name":"super_admin","is_active":false}`, "id", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "protected role cannot be deactivated", out["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProtectedRoleDescriptionAllowed(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	mock.ExpectQuery("SELECT .+ FROM roles WHERE id=\\?").
		WithArgs(uint64(1)).
		WillReturnRows(roleMockRows(1, "admin"))
	mock.ExpectExec("UPDATE roles SET name=\\?, description=\\?, is_active=\\?").
		WithArgs("admin", "full access", true, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, _ := doRole(t, h.Update, http.MethodPut, "/v1/roles/1", `{"name":"admin","description":"full access"}`, "id", "1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProtectedRoleRefused(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	mock.ExpectQuery("SELECT .+ FROM roles WHERE id=\\?").
		WithArgs(uint64(1)).
		WillReturnRows(roleMockRows(1, "admin"))

	rec, out := doRole(t, h.Delete, http.MethodDelete, "/v1/roles/1", "", "id", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "protected role cannot be deleted", out["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRegularRole(t *testing.T) {
	h, mock := newRoleHandlerMock(t)

	mock.ExpectQuery("SELECT .+ FROM roles WHERE id=\\?").
		WithArgs(uint64(7)).
		WillReturnRows(roleMockRows(7, "editor"))
	mock.ExpectExec("UPDATE roles SET deleted_at=UTC_TIMESTAMP\\(\\)").
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec, out := doRole(t, h.Delete, http.MethodDelete, "/v1/roles/7", "", "id", "7")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

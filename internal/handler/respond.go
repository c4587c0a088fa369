// Package handler implements the HTTP endpoints. Handlers bind and
// validate request bodies, call repositories, and answer with a uniform
// envelope: successes are {success:true, ...}, failures are
// {success:false, error:<category>, message:<text>, code?:<machine code>}.
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/fieldprep/exercise-hub/internal/repository"
)

// validate is shared by all handlers; validator instances cache struct
// metadata and are safe for concurrent use.
var validate = validator.New()

// fail writes the uniform error envelope. code may be empty.
func fail(c echo.Context, status int, category, message, code string) error {
	body := echo.Map{"success": false, "error": category, "message": message}
	if code != "" {
		body["code"] = code
	}
	return c.JSON(status, body)
}

func failValidation(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, "validation", message, "VALIDATION_ERROR")
}

func failNotFound(c echo.Context, what string) error {
	return fail(c, http.StatusNotFound, "not_found", what+" not found", "NOT_FOUND")
}

func failInternal(c echo.Context, message string) error {
	return fail(c, http.StatusInternalServerError, "internal", message, "")
}

// parseID reads a numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseListQuery builds pagination options from the query string. Only
// admins may see soft-deleted rows.
func parseListQuery(c echo.Context, isAdmin bool) repository.ListQuery {
	q := repository.ListQuery{Search: strings.TrimSpace(c.QueryParam("search"))}
	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil {
		q.Page = n
	}
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		q.Limit = n
	}
	if isAdmin && c.QueryParam("include_deleted") == "true" {
		q.IncludeDeleted = true
	}
	return q.Normalize()
}

// equalFoldTrim compares two names ignoring case and surrounding space.
func equalFoldTrim(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// pageMeta is the pagination block attached to list responses.
func pageMeta(q repository.ListQuery, total int) echo.Map {
	return echo.Map{"page": q.Page, "limit": q.Limit, "total": total}
}

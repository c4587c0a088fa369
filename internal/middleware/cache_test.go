package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldprep/exercise-hub/internal/auth"
	"github.com/fieldprep/exercise-hub/internal/config"
)

func newCacheMiddleware(t *testing.T) echo.MiddlewareFunc {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
	return NewRedisCache(cfg, rdb)
}

func getRoles(t *testing.T, mw echo.MiddlewareFunc, p *auth.Principal, payload string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/roles?include_deleted=true", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/roles")
	c.Set(principalKey, p)

	h := mw(func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"roles": payload})
	})
	require.NoError(t, h(c))
	return rec
}

func TestCacheSegmentsAdminAndNonAdminEntries(t *testing.T) {
	mw := newCacheMiddleware(t)
	adm := &auth.Principal{ID: 1, Roles: []string{"admin"}, IsActive: true}
	usr := &auth.Principal{ID: 2, Roles: []string{"viewer"}, IsActive: true}

	// Admin sees soft-deleted rows; that body goes into the admin entry.
	rec := getRoles(t, mw, adm, "live,removed-role")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "removed-role")

	// Same URL from a non-admin must not replay the admin's body.
	rec = getRoles(t, mw, usr, "live")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), "removed-role")

	// Each tier then hits its own entry, not the other's.
	rec = getRoles(t, mw, usr, "never-rendered")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.NotContains(t, rec.Body.String(), "removed-role")

	rec = getRoles(t, mw, adm, "never-rendered")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "removed-role")
}

func TestCacheReplaysWithinSameTier(t *testing.T) {
	mw := newCacheMiddleware(t)
	usr := &auth.Principal{ID: 2, Roles: []string{"viewer"}, IsActive: true}

	rec := getRoles(t, mw, usr, "live")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))

	// A different non-admin shares the entry; the listing is the same for
	// every non-admin principal.
	other := &auth.Principal{ID: 3, Roles: []string{"viewer"}, IsActive: true}
	rec = getRoles(t, mw, other, "never-rendered")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Contains(t, rec.Body.String(), "live")
}

package middleware

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fieldprep/exercise-hub/internal/config"
)

// cacheWriter captures the response while forwarding it to the client so a
// successful body can be stored after the handler ran.
type cacheWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (w *cacheWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheWriter) Write(b []byte) (int, error) {
	if w.size+int64(len(b)) <= w.limit {
		w.buf.Write(b)
	}
	w.size += int64(len(b))
	return w.ResponseWriter.Write(b)
}

// NewRedisCache caches 200 responses of the configured methods in Redis.
// The entry packs the status and content type ahead of the body so replays
// look identical to the original response. With no Redis client the
// middleware is a pass-through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			ctx := c.Request().Context()
			key := cacheKey(cfg.Prefix, c)

			if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
				if status, ctype, body, ok := decodeEntry(bs); ok {
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(status, ctype, body)
				}
			}

			w := &cacheWriter{
				ResponseWriter: c.Response().Writer,
				status:         http.StatusOK,
				limit:          int64(cfg.MaxBodyBytes),
			}
			c.Response().Writer = w
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}

			if w.status == http.StatusOK && w.size <= w.limit {
				entry := encodeEntry(w.status, c.Response().Header().Get(echo.HeaderContentType), w.buf.Bytes())
				_ = rdb.Set(ctx, key, entry, ttl).Err()
			}
			return nil
		}
	}
}

// cacheKey hashes route and query under the configured prefix, segmented
// by privilege tier. Admin-only query flags (include_deleted) change
// listing contents, so admin and non-admin responses must never share an
// entry.
func cacheKey(prefix string, c echo.Context) string {
	tier := "user"
	if p, ok := CurrentPrincipal(c); ok && p.IsAdmin() {
		tier = "admin"
	}
	sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", prefix, tier, sum[:])
}

// encodeEntry packs: [4 bytes status][4 bytes ctypeLen][ctype][body].
func encodeEntry(status int, ctype string, body []byte) []byte {
	out := make([]byte, 8+len(ctype)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(ctype)))
	copy(out[8:], ctype)
	copy(out[8+len(ctype):], body)
	return out
}

func decodeEntry(bs []byte) (status int, ctype string, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, "", nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	clen := int(binary.BigEndian.Uint32(bs[4:8]))
	if clen < 0 || 8+clen > len(bs) {
		return 0, "", nil, false
	}
	return status, string(bs[8 : 8+clen]), bs[8+clen:], true
}

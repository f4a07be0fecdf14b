package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/cowblue-git/farm-telegram-bot/internal/config"
)

const snapshotVersion = 1

// catalogSnapshot is one cached reply of the public catalog.
type catalogSnapshot struct {
    V           int    `json:"v"`
    Status      int    `json:"status"`
    ContentType string `json:"content_type,omitempty"`
    Body        []byte `json:"body"`
}

func encodeSnapshot(status int, contentType string, body []byte) ([]byte, error) {
    return json.Marshal(catalogSnapshot{V: snapshotVersion, Status: status, ContentType: contentType, Body: body})
}

// decodeSnapshot rejects anything written by a different snapshot version.
func decodeSnapshot(raw []byte) (catalogSnapshot, bool) {
    var s catalogSnapshot
    if err := json.Unmarshal(raw, &s); err != nil || s.V != snapshotVersion || s.Status == 0 {
        return catalogSnapshot{}, false
    }
    return s, true
}

// bodyRecorder tees the response body up to limit bytes.
type bodyRecorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
    if !r.overflow {
        if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
            r.overflow = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// snapshotKey is <prefix>:catalog:<sha1 of route and, for route_query, the query>.
func snapshotKey(cfg config.CacheConfig, c echo.Context) string {
    src := c.Path()
    if !strings.EqualFold(cfg.KeyStrategy, "route") {
        src += "?" + c.Request().URL.Query().Encode()
    }
    sum := sha1.Sum([]byte(src))
    return cfg.Prefix + ":catalog:" + hex.EncodeToString(sum[:])
}

// NewRedisCache serves the public catalog from short-lived Redis snapshots.
// Only 200 replies are stored; a reply marked no-store, a body over
// MaxBodyBytes or a client sending Cache-Control: no-cache skips the cache.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 15 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[strings.ToUpper(req.Method)] {
                return next(c)
            }
            key := snapshotKey(cfg, c)
            res := c.Response()

            if !strings.Contains(req.Header.Get("Cache-Control"), "no-cache") {
                raw, err := rdb.Get(req.Context(), key).Bytes()
                switch {
                case err == nil:
                    if s, ok := decodeSnapshot(raw); ok {
                        if s.ContentType != "" {
                            res.Header().Set(echo.HeaderContentType, s.ContentType)
                        }
                        res.Header().Set("X-Cache", "HIT")
                        return c.Blob(s.Status, s.ContentType, s.Body)
                    }
                case err != redis.Nil:
                    log.Warn("cache: read snapshot", zap.String("key", key), zap.Error(err))
                }
            }

            rec := &bodyRecorder{ResponseWriter: res.Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            res.Writer = rec
            res.Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }

            if rec.status != http.StatusOK || rec.overflow ||
                strings.Contains(res.Header().Get("Cache-Control"), "no-store") {
                return nil
            }
            payload, err := encodeSnapshot(rec.status, res.Header().Get(echo.HeaderContentType), rec.buf.Bytes())
            if err != nil {
                return nil
            }
            wctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), time.Second)
            defer cancel()
            if err := rdb.Set(wctx, key, payload, ttl).Err(); err != nil {
                log.Warn("cache: store snapshot", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

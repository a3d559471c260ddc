package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-service/internal/config"
	"github.com/iliyamo/library-service/internal/observability"
	"github.com/iliyamo/library-service/internal/utils"
)

const secret = "middleware-secret"

func whoami(c echo.Context) error {
	id, ok := IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"uid": id.UserID, "role": id.Role})
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	rec := serve(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	rec = serve(e, http.MethodGet, "/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	forged, err := utils.NewAccessToken("other-secret", 7, "ADMIN", 5)
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/me", forged.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", token(t, 7, "READER"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":7,"role":"READER"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/maybe", whoami, OptionalJWT(secret))

	rec := serve(e, http.MethodGet, "/maybe", "")
	assert.JSONEq(t, `{"anonymous":true}`, rec.Body.String())
	rec = serve(e, http.MethodGet, "/maybe", "garbage")
	assert.JSONEq(t, `{"anonymous":true}`, rec.Body.String())
	rec = serve(e, http.MethodGet, "/maybe", token(t, 3, "ADMIN"))
	assert.JSONEq(t, `{"uid":3,"role":"ADMIN"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(secret), RequireRole("ADMIN"))
	e.GET("/bare", whoami, RequireRole("ADMIN"))

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", token(t, 1, "READER")).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", token(t, 1, "ADMIN")).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/bare", "").Code)
}

func TestNewTokenBucket_PassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e.GET("/x", whoami, NewTokenBucket(cfg, nil, observability.Discard()))
	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/x", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/books/5", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/books/:id")

	cfg := config.RateLimitConfig{Prefix: "library:rl"}
	cases := map[string]string{
		"ip":         "library:rl:ip:10.0.0.9",
		"user":       "library:rl:user:anon",
		"route":      "library:rl:route:GET /api/books/:id",
		"ip_user":    "library:rl:ip:10.0.0.9:user:anon",
		"":           "library:rl:ip:10.0.0.9:user:anon:route:GET /api/books/:id",
		"user_route": "library:rl:user:anon:route:GET /api/books/:id",
	}
	for strategy, want := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, buildRateKey(cfg, c), strategy)
	}

	c.Set(IdentityKey, Identity{UserID: 12, Role: "READER"})
	cfg.KeyStrategy = "user"
	assert.Equal(t, "library:rl:user:12", buildRateKey(cfg, c))
}

func TestParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]any{int64(1), int64(4), int64(0)})
	require.True(t, ok)
	assert.True(t, allowed)
	assert.EqualValues(t, 4, remaining)
	assert.Zero(t, retry)

	allowed, _, retry, ok = parseBucketResult([]any{int64(0), int64(0), int64(1500)})
	require.True(t, ok)
	assert.False(t, allowed)
	assert.Equal(t, 2, retryAfterSeconds(retry))

	_, _, _, ok = parseBucketResult("nope")
	assert.False(t, ok)
	assert.Equal(t, 0, retryAfterSeconds(-10))
}

func TestCacheKeyFrom(t *testing.T) {
	e := echo.New()
	newCtx := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/books")
		return c
	}
	cfg := config.CacheConfig{Prefix: "library:cache"}

	a := cacheKeyFrom(cfg, newCtx("/api/books?title=dune"))
	b := cacheKeyFrom(cfg, newCtx("/api/books?title=emma"))
	assert.True(t, strings.HasPrefix(a, "library:cache:"))
	assert.NotEqual(t, a, b)

	cfg.KeyStrategy = "route"
	assert.Equal(t, cacheKeyFrom(cfg, newCtx("/api/books?title=dune")), cacheKeyFrom(cfg, newCtx("/api/books?page=3")))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	payload, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(payload)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, err := cw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.False(t, cw.truncated())
	_, err = cw.Write([]byte("def"))
	require.NoError(t, err)
	assert.True(t, cw.truncated())
	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestNewRedisCache_Disabled(t *testing.T) {
	e := echo.New()
	e.GET("/x", whoami, NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestMetricsMiddleware(t *testing.T) {
	m := observability.NewMetrics()
	e := echo.New()
	e.Use(Metrics(m))
	e.GET("/books/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/gone", func(c echo.Context) error { return echo.NewHTTPError(http.StatusGone) })

	serve(e, http.MethodGet, "/books/1", "")
	serve(e, http.MethodGet, "/books/2", "")
	serve(e, http.MethodGet, "/boom", "")
	serve(e, http.MethodGet, "/gone", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/books/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/boom", "500")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/gone", "410")))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, observability.LogConfig{Level: "debug", Format: "json"})
	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/missing", func(c echo.Context) error { return echo.ErrNotFound })

	serve(e, http.MethodGet, "/ok", "")
	serve(e, http.MethodGet, "/missing", "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var first, second map[string]any
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "/ok", first["uri"])
	assert.EqualValues(t, 200, first["status"])
	assert.Equal(t, "WARN", second["level"])
	assert.EqualValues(t, 404, second["status"])
}

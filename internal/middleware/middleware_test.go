package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/config"
	"github.com/smartvid/smartvid/internal/utils"
)

const testSecret = "test-secret"

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	uid, ok := UserID(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "no user"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "role": c.Get(KeyRole)})
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))
	e.POST("/me", whoami, JWTAuth(testSecret))

	tok, err := utils.NewAccessToken(testSecret, 42, "USER", 5)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer nope")
		rec := serve(e, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
		rec := serve(e, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"user_id":42,"role":"USER"}`, rec.Body.String())
	})

	t.Run("query token on GET", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/me?access_token="+tok.Token, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query token ignored on POST", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/me?access_token="+tok.Token, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestJWTAuthRedirect(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuthRedirect(testSecret, "/auth"))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	rec := serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get(echo.HeaderLocation))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(echo.HeaderAccept, "text/html")
	req.Header.Set(echo.HeaderAuthorization, "Bearer nope")
	rec = serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(echo.HeaderLocation))
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	setRole := func(role string) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if role != "" {
					c.Set(KeyRole, role)
				}
				return next(c)
			}
		}
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/admin", ok, setRole("ADMIN"), RequireRole("/dashboard", "ADMIN"))
	e.GET("/user", ok, setRole("USER"), RequireRole("/dashboard", "ADMIN"))
	e.GET("/none", ok, setRole(""), RequireRole("", "ADMIN"))

	assert.Equal(t, http.StatusNoContent, serve(e, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(e, httptest.NewRequest(http.MethodGet, "/user", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set(echo.HeaderAccept, "text/html,application/xhtml+xml")
	rec := serve(e, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get(echo.HeaderLocation))

	req = httptest.NewRequest(http.MethodGet, "/none", nil)
	req.Header.Set(echo.HeaderAccept, "text/html")
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)
}

func TestUserIDAndIdentity(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
	assert.Equal(t, "anon", identity(c))

	c.Set(KeyUserID, uint64(7))
	id, ok := UserID(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)
	assert.Equal(t, "7", identity(c))

	c.Set(KeyUserID, "9")
	id, ok = UserID(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), id)
}

type checkoutBody struct {
	Plan     string `json:"plan" validate:"required,plan"`
	Provider string `json:"provider" validate:"omitempty,provider"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func TestValidator(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Validate(checkoutBody{Plan: "pro", Provider: "stripe"}))
	assert.NoError(t, v.Validate(checkoutBody{Plan: "business"}))

	err := v.Validate(checkoutBody{Plan: "gold", Provider: "paypal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan must be free, pro or business")
	assert.Contains(t, err.Error(), "provider must be stripe or paystack")

	err = v.Validate(checkoutBody{Email: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan is required")
	assert.Contains(t, err.Error(), "email must be a valid email")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "down") })

	assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/ok", nil)).Code)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"route":"/ok"`)

	buf.Reset()
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"status":502`)
	assert.Contains(t, buf.String(), `"user":"anon"`)
}

func TestCachePayloadRoundTrip(t *testing.T) {
	h := http.Header{}
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	bs, err := encodePayload(http.StatusOK, h, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, hdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, echo.MIMEApplicationJSON, hdr.Get(echo.HeaderContentType))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0})
	assert.False(t, ok)
}

func TestCacheKeyStrategies(t *testing.T) {
	e := echo.New()
	newCtx := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/blog/:slug")
		return c
	}
	cfg := config.CacheConfig{Prefix: "p", KeyStrategy: "route"}
	assert.Equal(t, cacheKeyFrom(cfg, newCtx("/v1/blog/a")), cacheKeyFrom(cfg, newCtx("/v1/blog/b")))

	cfg.KeyStrategy = "route_query"
	a := cacheKeyFrom(cfg, newCtx("/v1/blog/a"))
	assert.NotEqual(t, a, cacheKeyFrom(cfg, newCtx("/v1/blog/b")))
	assert.NotEqual(t, a, cacheKeyFrom(cfg, newCtx("/v1/blog/a?page=2")))
	assert.Regexp(t, `^p:[0-9a-f]{40}$`, a)
}

func TestCacheAndRateLimitPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "x")
	}
	e.GET("/x", h,
		NewRedisCache(config.CacheConfig{Enabled: true}, nil),
		NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	}
	assert.Equal(t, 3, calls)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/ai/scenes", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/ai/scenes")
	c.Set(KeyUserID, uint64(3))

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:user:3:route:POST /v1/ai/scenes", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c))
}

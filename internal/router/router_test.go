package router

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/config"
	"github.com/smartvid/smartvid/internal/handler"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/utils"
)

const secret = "router-secret"

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	Setup(e, config.Config{SiteURL: "http://localhost:5173", BodyLimit: "1M"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterRoutes(e, nil)
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil), secret, nil)
	RegisterAPI(e, API{
		Videos:  handler.NewVideoHandler(nil, nil),
		Content: handler.NewContentHandler(nil, nil, nil),
		Billing: handler.NewBillingHandler(nil, nil, nil),
		Media:   handler.NewMediaHandler(nil),
		Events:  handler.NewEventsHandler(nil),
	}, secret, Limits{})
	RegisterAdmin(e, handler.NewAdminHandler(nil, nil, nil, nil, nil), secret)
	RegisterWebhooks(e, handler.NewBillingHandler(nil, nil, nil))
	return e
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer(t)
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/register",
		"POST /v1/auth/login",
		"GET /v1/me",
		"POST /v1/videos/:id/render",
		"GET /v1/render/:renderId/status",
		"POST /v1/scenes",
		"POST /v1/tts",
		"GET /v1/stock/videos",
		"GET /v1/usage",
		"GET /v1/subscription",
		"POST /v1/checkout",
		"POST /v1/subscription/cancel",
		"GET /v1/events",
		"GET /v1/admin/analytics",
		"PUT /v1/admin/users/:id/role",
		"DELETE /v1/admin/blog/:id",
		"POST /webhooks/stripe",
		"POST /webhooks/paystack",
	} {
		assert.True(t, have[want], "missing route %s", want)
	}
}

func TestProtectedRoutes(t *testing.T) {
	e := newServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/usage", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := utils.NewAccessToken(secret, 3, model.RoleUser, 5)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/analytics", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/admin/analytics", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	req.Header.Set(echo.HeaderAccept, "text/html")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get(echo.HeaderLocation))
}

func TestAdminRedirectsAnonymousBrowser(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/analytics", nil)
	req.Header.Set(echo.HeaderAccept, "text/html")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get(echo.HeaderLocation))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/admin/analytics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSAndHealth(t *testing.T) {
	e := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:5173")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

// Package router mounts the handlers on echo.  Each Register function owns
// one route group and the middleware that guards it.
package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/smartvid/smartvid/internal/config"
	"github.com/smartvid/smartvid/internal/handler"
	"github.com/smartvid/smartvid/internal/middleware"
)

// Setup installs the middleware shared by every route: panic recovery,
// request ids, request logging, the body limit, CORS for the web app and
// the request validator.
func Setup(e *echo.Echo, cfg config.Config, log *slog.Logger) {
	e.HideBanner = true
	e.HidePort = true
	e.Validator = middleware.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	if cfg.BodyLimit != "" {
		e.Use(echomw.BodyLimit(cfg.BodyLimit))
	}
	origins := []string{strings.TrimRight(cfg.SiteURL, "/")}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			"Cache-Control",
		},
		AllowCredentials: true,
		MaxAge:           600,
	}))
}

// RegisterRoutes registers the health and readiness checks.  ready may be nil.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// authenticated /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	limit = pass(limit)
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// logout works with only a refresh token, so no JWT here
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout, limit)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the unauthenticated catalogue, blog and
// sitemap.  Responses go through the response cache.
func RegisterPublic(e *echo.Echo, content *handler.ContentHandler, blog *handler.BlogHandler, cache echo.MiddlewareFunc) {
	cache = pass(cache)
	e.GET("/v1/templates", content.ListTemplates, cache)
	e.GET("/v1/templates/:id", content.GetTemplate, cache)
	e.GET("/v1/blog", blog.List, cache)
	e.GET("/v1/blog/:slug", blog.Get, cache)
	e.GET("/sitemap.xml", blog.SitemapXML, cache)
}

// RegisterWebhooks registers the payment provider callbacks.  They are
// authenticated by signature, not JWT.
func RegisterWebhooks(e *echo.Echo, b *handler.BillingHandler) {
	e.POST("/webhooks/stripe", b.StripeWebhook)
	e.POST("/webhooks/paystack", b.PaystackWebhook)
}

// pass substitutes a no-op for a missing middleware.
func pass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m != nil {
		return m
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}

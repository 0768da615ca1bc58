package router

import (
	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/handler"
	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/model"
)

// API groups the handlers behind authentication.
type API struct {
	Videos  *handler.VideoHandler
	Content *handler.ContentHandler
	Billing *handler.BillingHandler
	Media   *handler.MediaHandler
	Events  *handler.EventsHandler
}

// Limits are the per-group middleware chosen at startup.
type Limits struct {
	RateLimit   echo.MiddlewareFunc
	AIRateLimit echo.MiddlewareFunc
	Cache       echo.MiddlewareFunc
}

// RegisterAPI registers the user endpoints under /v1.  All routes require
// a valid JWT for either role.
func RegisterAPI(e *echo.Echo, api API, jwtSecret string, l Limits) {
	l.RateLimit, l.AIRateLimit, l.Cache = pass(l.RateLimit), pass(l.AIRateLimit), pass(l.Cache)
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("", model.RoleUser, model.RoleAdmin),
	)

	// ---- Profile ----
	g.GET("/profile", api.Content.GetProfile)
	g.PUT("/profile", api.Content.UpdateProfile, l.RateLimit)

	// ---- Videos ----
	g.GET("/videos", api.Videos.List)
	g.POST("/videos", api.Videos.Create, l.RateLimit)
	g.GET("/videos/:id", api.Videos.Get)
	g.PUT("/videos/:id", api.Videos.Update, l.RateLimit)
	g.DELETE("/videos/:id", api.Videos.Delete, l.RateLimit)
	g.POST("/videos/:id/render", api.Videos.StartRender, l.RateLimit)
	g.GET("/render/:renderId/status", api.Videos.RenderStatus)

	// ---- Generation ----
	g.POST("/scenes", api.Media.Scenes, l.AIRateLimit)
	g.POST("/tts", api.Media.TTS, l.AIRateLimit)
	g.GET("/stock/videos", api.Media.StockVideos, l.RateLimit, l.Cache)

	// ---- Notifications ----
	g.GET("/notifications", api.Content.ListNotifications)
	g.POST("/notifications/read-all", api.Content.MarkAllNotificationsRead)
	g.POST("/notifications/:id/read", api.Content.MarkNotificationRead)
	g.DELETE("/notifications/:id", api.Content.DeleteNotification)

	// ---- Billing ----
	g.GET("/usage", api.Billing.GetUsage)
	g.GET("/subscription", api.Billing.GetSubscription)
	g.POST("/checkout", api.Billing.Checkout, l.RateLimit)
	g.POST("/subscription/cancel", api.Billing.CancelSubscription, l.RateLimit)

	// ---- Realtime ----
	g.GET("/events", api.Events.Stream)
}

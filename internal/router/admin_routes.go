package router

import (
	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/handler"
	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/model"
)

// RegisterAdmin registers the admin console API under /v1/admin.  Browser
// navigations without a valid token or the ADMIN role are sent to /auth.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuthRedirect(jwtSecret, "/auth"),
		middleware.RequireRole("/auth", model.RoleAdmin),
	)

	g.GET("/analytics", a.Analytics)
	g.GET("/users", a.ListUsers)
	g.PUT("/users/:id/role", a.SetRole)
	g.GET("/render-logs", a.ListRenderLogs)

	// ---- Templates ----
	g.GET("/templates", a.ListTemplates)
	g.POST("/templates", a.CreateTemplate)
	g.PUT("/templates/:id", a.UpdateTemplate)
	g.DELETE("/templates/:id", a.DeleteTemplate)

	// ---- Blog ----
	g.GET("/blog", a.ListPosts)
	g.POST("/blog", a.CreatePost)
	g.PUT("/blog/:id", a.UpdatePost)
	g.DELETE("/blog/:id", a.DeletePost)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/repository"
)

// AnalyticsSource computes the dashboard summary.
type AnalyticsSource interface {
	Analytics(ctx context.Context, now time.Time) (repository.Analytics, error)
}

// UserDirectory lists users and changes roles.
type UserDirectory interface {
	List(ctx context.Context, search string, p, size int) ([]model.User, int64, error)
	SetRole(ctx context.Context, id uint64, role string) error
}

// RenderLogReader pages through render logs.
type RenderLogReader interface {
	List(ctx context.Context, status string, p, size int) ([]model.RenderLog, int64, error)
}

// AdminHandler serves /v1/admin.  Routes are mounted behind
// middleware.RequireRole(ADMIN).
type AdminHandler struct {
	Stats      AnalyticsSource
	Users      UserDirectory
	RenderLogs RenderLogReader
	Templates  TemplateStore
	Posts      BlogStore
	Now        func() time.Time
}

func NewAdminHandler(stats AnalyticsSource, users UserDirectory, logs RenderLogReader, t TemplateStore, b BlogStore) *AdminHandler {
	return &AdminHandler{Stats: stats, Users: users, RenderLogs: logs, Templates: t, Posts: b, Now: time.Now}
}

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

type templateReq struct {
	Name         string          `json:"name" validate:"required,max=120"`
	Description  string          `json:"description" validate:"max=1000"`
	Category     string          `json:"category" validate:"required,max=60"`
	ThumbnailURL string          `json:"thumbnail_url" validate:"omitempty,url,max=500"`
	Config       json.RawMessage `json:"config"`
	IsPremium    bool            `json:"is_premium"`
	IsActive     *bool           `json:"is_active"`
}

func (r templateReq) model(id uint64) model.Template {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return model.Template{
		ID:           id,
		Name:         strings.TrimSpace(r.Name),
		Description:  r.Description,
		Category:     strings.ToLower(strings.TrimSpace(r.Category)),
		ThumbnailURL: r.ThumbnailURL,
		Config:       r.Config,
		IsPremium:    r.IsPremium,
		IsActive:     active,
	}
}

type postReq struct {
	Slug      string `json:"slug" validate:"required,max=160"`
	Title     string `json:"title" validate:"required,max=255"`
	Excerpt   string `json:"excerpt" validate:"max=500"`
	Content   string `json:"content" validate:"required"`
	Author    string `json:"author" validate:"max=120"`
	CoverURL  string `json:"cover_url" validate:"omitempty,url,max=500"`
	Published bool   `json:"published"`
}

func (r postReq) model(id uint64) model.BlogPost {
	return model.BlogPost{
		ID:        id,
		Slug:      strings.ToLower(strings.TrimSpace(r.Slug)),
		Title:     strings.TrimSpace(r.Title),
		Excerpt:   r.Excerpt,
		Content:   r.Content,
		Author:    strings.TrimSpace(r.Author),
		CoverURL:  r.CoverURL,
		Published: r.Published,
	}
}

// Analytics returns the dashboard summary.
func (h *AdminHandler) Analytics(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	a, err := h.Stats.Analytics(ctx, h.Now())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// ListUsers pages through users, optionally filtered by ?search=.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p := queryInt(c, "page", 1)
	users, total, err := h.Users.List(ctx, c.QueryParam("search"), p, queryInt(c, "page_size", 20))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": users, "total": total, "page": p})
}

// SetRole changes a user's role.  Admins cannot demote themselves.
func (h *AdminHandler) SetRole(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req roleReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if self, err := getUserID(c); err == nil && self == id && req.Role != model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot remove your own admin role"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetRole(ctx, id, req.Role); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": req.Role})
}

// ListRenderLogs pages through render logs, optionally by ?status=.
func (h *AdminHandler) ListRenderLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p := queryInt(c, "page", 1)
	logs, total, err := h.RenderLogs.List(ctx, strings.TrimSpace(c.QueryParam("status")), p, queryInt(c, "page_size", 50))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": logs, "total": total, "page": p})
}

// ListTemplates returns every template, inactive ones included.
func (h *AdminHandler) ListTemplates(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Templates.List(ctx, c.QueryParam("category"), true)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreateTemplate adds a template.
func (h *AdminHandler) CreateTemplate(c echo.Context) error {
	var req templateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if len(req.Config) > 0 && !json.Valid(req.Config) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "config must be JSON"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t := req.model(0)
	if err := h.Templates.Create(ctx, &t); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTemplate overwrites a template.
func (h *AdminHandler) UpdateTemplate(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req templateReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if len(req.Config) > 0 && !json.Valid(req.Config) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "config must be JSON"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Templates.Update(ctx, req.model(id)); err != nil {
		return fail(c, err)
	}
	t, err := h.Templates.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTemplate removes a template.
func (h *AdminHandler) DeleteTemplate(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Templates.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListPosts returns every post, drafts included.
func (h *AdminHandler) ListPosts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	posts, err := h.Posts.ListAll(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": posts})
}

// CreatePost adds a blog post.
func (h *AdminHandler) CreatePost(c echo.Context) error {
	var req postReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	p := req.model(0)
	if !slugPattern.MatchString(p.Slug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug must be lowercase words joined by hyphens"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Posts.Create(ctx, &p); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdatePost overwrites a blog post.
func (h *AdminHandler) UpdatePost(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req postReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	p := req.model(id)
	if !slugPattern.MatchString(p.Slug) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slug must be lowercase words joined by hyphens"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Posts.Update(ctx, p); err != nil {
		return fail(c, err)
	}
	updated, err := h.Posts.GetByID(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeletePost removes a blog post.
func (h *AdminHandler) DeletePost(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Posts.Delete(ctx, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

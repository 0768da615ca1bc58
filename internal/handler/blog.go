package handler

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/model"
)

// BlogStore is the blog post persistence.
type BlogStore interface {
	ListPublished(ctx context.Context, p, size int) ([]model.BlogPost, error)
	ListAll(ctx context.Context) ([]model.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (model.BlogPost, error)
	GetByID(ctx context.Context, id uint64) (model.BlogPost, error)
	Create(ctx context.Context, p *model.BlogPost) error
	Update(ctx context.Context, p model.BlogPost) error
	Delete(ctx context.Context, id uint64) error
}

// SitemapBuilder renders sitemap.xml.
type SitemapBuilder interface {
	Build(ctx context.Context) ([]byte, error)
}

// BlogHandler serves the public blog and the sitemap.
type BlogHandler struct {
	Posts   BlogStore
	Sitemap SitemapBuilder
}

func NewBlogHandler(p BlogStore, s SitemapBuilder) *BlogHandler {
	return &BlogHandler{Posts: p, Sitemap: s}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// List returns a page of published posts without their content.
func (h *BlogHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	posts, err := h.Posts.ListPublished(ctx, queryInt(c, "page", 1), queryInt(c, "page_size", 12))
	if err != nil {
		return fail(c, err)
	}
	for i := range posts {
		posts[i].Content = ""
	}
	return c.JSON(http.StatusOK, echo.Map{"items": posts})
}

// Get returns one published post by slug.
func (h *BlogHandler) Get(c echo.Context) error {
	slug := strings.ToLower(strings.TrimSpace(c.Param("slug")))
	if !slugPattern.MatchString(slug) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Posts.GetBySlug(ctx, slug)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// SitemapXML serves the sitemap document.
func (h *BlogHandler) SitemapXML(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	doc, err := h.Sitemap.Build(ctx)
	if err != nil {
		middleware.Logger(c).Error("sitemap: build failed", "err", err)
		return c.String(http.StatusInternalServerError, "sitemap unavailable")
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, doc)
}

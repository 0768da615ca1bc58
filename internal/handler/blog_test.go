package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
)

func TestBlogPublic(t *testing.T) {
	posts := &mockPosts{}
	posts.On("ListPublished", mock.Anything, 1, 12).
		Return([]model.BlogPost{{ID: 1, Slug: "hello", Content: "long body"}}, nil)
	posts.On("GetBySlug", mock.Anything, "hello").Return(model.BlogPost{ID: 1, Slug: "hello", Content: "long body"}, nil)
	posts.On("GetBySlug", mock.Anything, "draft").Return(model.BlogPost{}, repository.ErrNotFound)
	h := NewBlogHandler(posts, fakeSitemap{})
	e := newTestEcho()
	e.GET("/v1/blog", h.List)
	e.GET("/v1/blog/:slug", h.Get)

	rec := doJSON(e, http.MethodGet, "/v1/blog", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "long body")

	rec = doJSON(e, http.MethodGet, "/v1/blog/hello", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "long body")

	assert.Equal(t, http.StatusNotFound, doJSON(e, http.MethodGet, "/v1/blog/draft", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(e, http.MethodGet, "/v1/blog/..%2Fetc", "").Code)
}

func TestSitemapXML(t *testing.T) {
	e := newTestEcho()
	e.GET("/sitemap.xml", NewBlogHandler(nil, fakeSitemap{doc: []byte("<urlset/>")}).SitemapXML)
	e.GET("/broken.xml", NewBlogHandler(nil, fakeSitemap{err: errors.New("db")}).SitemapXML)

	rec := doJSON(e, http.MethodGet, "/sitemap.xml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationXMLCharsetUTF8, rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "<urlset/>", rec.Body.String())

	assert.Equal(t, http.StatusInternalServerError, doJSON(e, http.MethodGet, "/broken.xml", "").Code)
}

func TestEventsStream(t *testing.T) {
	ev, err := realtime.NewEvent(realtime.EventVideoUpdated, map[string]any{"video_id": 4, "status": "completed"})
	require.NoError(t, err)
	h := NewEventsHandler(fakeEvents{events: []realtime.Event{ev}})
	e := newTestEcho()
	e.GET("/v1/events", h.Stream, asUser(4, model.RoleUser))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil).WithContext(ctx)
	rec := doReq(e, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	body := rec.Body.String()
	assert.Contains(t, body, "retry: 5000")
	assert.Contains(t, body, "event: video.updated\n")
	assert.Contains(t, body, `"video_id":4`)
}

func TestReady(t *testing.T) {
	e := newTestEcho()
	e.GET("/healthz", Health)
	e.GET("/ready", Ready(fakePinger{}))
	e.GET("/down", Ready(fakePinger{err: errors.New("refused")}))

	assert.Equal(t, "ok", doJSON(e, http.MethodGet, "/healthz", "").Body.String())
	assert.Equal(t, http.StatusOK, doJSON(e, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(e, http.MethodGet, "/down", "").Code)
}

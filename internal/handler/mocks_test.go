package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/integrations/render"
	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/queue"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
	"github.com/smartvid/smartvid/internal/service"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = middleware.NewValidator()
	return e
}

// asUser stands in for JWTAuth.
func asUser(id uint64, role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.KeyUserID, id)
			c.Set(middleware.KeyRole, role)
			return next(c)
		}
	}
}

func doJSON(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doReq(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	args := m.Called(ctx, email, password, role, cost)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockAccounts) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockAccounts) GetByID(ctx context.Context, id uint64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	return m.Called(ctx, userID, tokenHash, exp).Error(0)
}

func (m *mockTokens) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockTokens) RevokeByHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *mockTokens) RevokeAllForUser(ctx context.Context, userID uint64) error {
	return m.Called(ctx, userID).Error(0)
}

type mockVideos struct{ mock.Mock }

func (m *mockVideos) Create(ctx context.Context, userID uint64, in service.VideoInput) (model.VideoProject, error) {
	args := m.Called(ctx, userID, in)
	return args.Get(0).(model.VideoProject), args.Error(1)
}

func (m *mockVideos) List(ctx context.Context, userID uint64, f repository.VideoFilter) ([]model.VideoProject, int64, error) {
	args := m.Called(ctx, userID, f)
	return args.Get(0).([]model.VideoProject), args.Get(1).(int64), args.Error(2)
}

func (m *mockVideos) Get(ctx context.Context, userID, id uint64) (model.VideoProject, error) {
	args := m.Called(ctx, userID, id)
	return args.Get(0).(model.VideoProject), args.Error(1)
}

func (m *mockVideos) Update(ctx context.Context, userID, id uint64, in service.VideoInput) (model.VideoProject, error) {
	args := m.Called(ctx, userID, id, in)
	return args.Get(0).(model.VideoProject), args.Error(1)
}

func (m *mockVideos) Delete(ctx context.Context, userID, id uint64) error {
	return m.Called(ctx, userID, id).Error(0)
}

type mockRenderer struct{ mock.Mock }

func (m *mockRenderer) Request(ctx context.Context, userID, videoID uint64) (queue.RenderRequested, error) {
	args := m.Called(ctx, userID, videoID)
	return args.Get(0).(queue.RenderRequested), args.Error(1)
}

func (m *mockRenderer) Status(ctx context.Context, userID uint64, renderID string) (render.Status, error) {
	args := m.Called(ctx, userID, renderID)
	return args.Get(0).(render.Status), args.Error(1)
}

type mockBiller struct{ mock.Mock }

func (m *mockBiller) Checkout(ctx context.Context, userID uint64, plan, provider string) (service.CheckoutResult, error) {
	args := m.Called(ctx, userID, plan, provider)
	return args.Get(0).(service.CheckoutResult), args.Error(1)
}

func (m *mockBiller) Cancel(ctx context.Context, userID uint64) (model.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Subscription), args.Error(1)
}

func (m *mockBiller) ApplyStripeEvent(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}

func (m *mockBiller) ApplyPaystackEvent(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

type mockSubs struct{ mock.Mock }

func (m *mockSubs) Status(ctx context.Context, userID uint64, force bool) (service.SubscriptionStatus, error) {
	args := m.Called(ctx, userID, force)
	return args.Get(0).(service.SubscriptionStatus), args.Error(1)
}

type mockUsage struct{ mock.Mock }

func (m *mockUsage) Check(ctx context.Context, userID uint64) (service.Usage, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(service.Usage), args.Error(1)
}

type mockMedia struct{ mock.Mock }

func (m *mockMedia) Scenes(ctx context.Context, userID, videoID uint64, req llm.SceneRequest) ([]model.Scene, error) {
	args := m.Called(ctx, userID, videoID, req)
	return args.Get(0).([]model.Scene), args.Error(1)
}

func (m *mockMedia) Speak(ctx context.Context, userID, videoID uint64, text, voiceID string) (service.Speech, error) {
	args := m.Called(ctx, userID, videoID, text, voiceID)
	return args.Get(0).(service.Speech), args.Error(1)
}

func (m *mockMedia) StockVideos(ctx context.Context, p pexels.SearchParams) ([]pexels.Video, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]pexels.Video), args.Error(1)
}

type mockUserDir struct{ mock.Mock }

func (m *mockUserDir) List(ctx context.Context, search string, p, size int) ([]model.User, int64, error) {
	args := m.Called(ctx, search, p, size)
	return args.Get(0).([]model.User), args.Get(1).(int64), args.Error(2)
}

func (m *mockUserDir) SetRole(ctx context.Context, id uint64, role string) error {
	return m.Called(ctx, id, role).Error(0)
}

type mockPosts struct{ mock.Mock }

func (m *mockPosts) ListPublished(ctx context.Context, p, size int) ([]model.BlogPost, error) {
	args := m.Called(ctx, p, size)
	return args.Get(0).([]model.BlogPost), args.Error(1)
}

func (m *mockPosts) ListAll(ctx context.Context) ([]model.BlogPost, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.BlogPost), args.Error(1)
}

func (m *mockPosts) GetBySlug(ctx context.Context, slug string) (model.BlogPost, error) {
	args := m.Called(ctx, slug)
	return args.Get(0).(model.BlogPost), args.Error(1)
}

func (m *mockPosts) GetByID(ctx context.Context, id uint64) (model.BlogPost, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.BlogPost), args.Error(1)
}

func (m *mockPosts) Create(ctx context.Context, p *model.BlogPost) error {
	args := m.Called(ctx, p)
	if args.Error(0) == nil {
		p.ID = 1
	}
	return args.Error(0)
}

func (m *mockPosts) Update(ctx context.Context, p model.BlogPost) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockPosts) Delete(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

type fakeStats struct {
	a   repository.Analytics
	err error
}

func (f fakeStats) Analytics(context.Context, time.Time) (repository.Analytics, error) {
	return f.a, f.err
}

type fakeSitemap struct {
	doc []byte
	err error
}

func (f fakeSitemap) Build(context.Context) ([]byte, error) { return f.doc, f.err }

// fakeEvents replays a fixed list of events and then closes the stream.
type fakeEvents struct{ events []realtime.Event }

func (f fakeEvents) Subscribe(ctx context.Context, _ uint64) <-chan realtime.Event {
	ch := make(chan realtime.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch
}

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

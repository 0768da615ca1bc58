package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/smartvid/smartvid/internal/integrations/email"
	"github.com/smartvid/smartvid/internal/integrations/llm"
	"github.com/smartvid/smartvid/internal/integrations/paystack"
	"github.com/smartvid/smartvid/internal/integrations/pexels"
	"github.com/smartvid/smartvid/internal/integrations/render"
	"github.com/smartvid/smartvid/internal/integrations/stripepay"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/queue"
	"github.com/smartvid/smartvid/internal/repository"
)

type mockVideos struct{ mock.Mock }

func (m *mockVideos) Create(ctx context.Context, v *model.VideoProject, q repository.QuotaGate) error {
	args := m.Called(ctx, v, q)
	if args.Error(0) == nil {
		v.ID = 1
	}
	return args.Error(0)
}

func (m *mockVideos) GetByID(ctx context.Context, id uint64) (model.VideoProject, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.VideoProject), args.Error(1)
}

func (m *mockVideos) GetForUser(ctx context.Context, id, userID uint64) (model.VideoProject, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(model.VideoProject), args.Error(1)
}

func (m *mockVideos) GetByRenderID(ctx context.Context, renderID string) (model.VideoProject, error) {
	args := m.Called(ctx, renderID)
	return args.Get(0).(model.VideoProject), args.Error(1)
}

func (m *mockVideos) ListByUser(ctx context.Context, userID uint64, f repository.VideoFilter) ([]model.VideoProject, int64, error) {
	args := m.Called(ctx, userID, f)
	return args.Get(0).([]model.VideoProject), args.Get(1).(int64), args.Error(2)
}

func (m *mockVideos) CountSince(ctx context.Context, userID uint64, since time.Time) (int, error) {
	args := m.Called(ctx, userID, since)
	return args.Int(0), args.Error(1)
}

func (m *mockVideos) UpdateContent(ctx context.Context, v model.VideoProject) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockVideos) SetScenes(ctx context.Context, id, userID uint64, scenes json.RawMessage) error {
	return m.Called(ctx, id, userID, scenes).Error(0)
}

func (m *mockVideos) SetAudioURL(ctx context.Context, id, userID uint64, url string) error {
	return m.Called(ctx, id, userID, url).Error(0)
}

func (m *mockVideos) UpdateStatus(ctx context.Context, id uint64, u repository.StatusUpdate) error {
	return m.Called(ctx, id, u).Error(0)
}

func (m *mockVideos) Delete(ctx context.Context, id, userID uint64) error {
	return m.Called(ctx, id, userID).Error(0)
}

type mockSubs struct{ mock.Mock }

func (m *mockSubs) Upsert(ctx context.Context, s model.Subscription) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockSubs) ActiveForUser(ctx context.Context, userID uint64) (model.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Subscription), args.Error(1)
}

func (m *mockSubs) LatestForUser(ctx context.Context, userID uint64) (model.Subscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Subscription), args.Error(1)
}

func (m *mockSubs) GetByProviderID(ctx context.Context, id string) (model.Subscription, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Subscription), args.Error(1)
}

type mockQuotas struct{ mock.Mock }

func (m *mockQuotas) Save(ctx context.Context, q model.UserQuota) error {
	return m.Called(ctx, q).Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUsers) GetProfile(ctx context.Context, userID uint64) (model.Profile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(model.Profile), args.Error(1)
}

func (m *mockUsers) SetStripeCustomer(ctx context.Context, userID uint64, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}

func (m *mockUsers) FindByStripeCustomer(ctx context.Context, customerID string) (uint64, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(uint64), args.Error(1)
}

// recorder collects notifications, events, render logs and mail.
type recorder struct {
	mu     sync.Mutex
	notes  []model.Notification
	events []string
	logs   []model.RenderLog
	mail   []email.Message
}

func (r *recorder) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uint64(len(r.notes) + 1)
	r.notes = append(r.notes, *n)
	return nil
}

func (r *recorder) Publish(_ context.Context, _ uint64, typ string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, typ)
	return nil
}

func (r *recorder) Record(_ context.Context, l model.RenderLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *recorder) Send(_ context.Context, m email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mail = append(r.mail, m)
	return nil
}

func (r *recorder) noteTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.notes))
	for _, n := range r.notes {
		out = append(out, n.Type)
	}
	return out
}

type mockDispatch struct{ mock.Mock }

func (m *mockDispatch) PublishRenderRequested(ctx context.Context, ev queue.RenderRequested) error {
	return m.Called(ctx, ev).Error(0)
}

type mockRender struct{ mock.Mock }

func (m *mockRender) Submit(ctx context.Context, job render.Job) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

func (m *mockRender) Status(ctx context.Context, id string) (render.Status, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(render.Status), args.Error(1)
}

type mockStripe struct{ mock.Mock }

func (m *mockStripe) EnsureCustomer(ctx context.Context, customerID, email string, userID uint64) (string, error) {
	args := m.Called(ctx, customerID, email, userID)
	return args.String(0), args.Error(1)
}

func (m *mockStripe) CreateCheckout(ctx context.Context, p stripepay.CheckoutParams) (stripepay.CheckoutSession, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(stripepay.CheckoutSession), args.Error(1)
}

func (m *mockStripe) GetSubscription(ctx context.Context, id string) (model.Subscription, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Subscription), args.Error(1)
}

func (m *mockStripe) LatestSubscription(ctx context.Context, customerID string) (model.Subscription, bool, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(model.Subscription), args.Bool(1), args.Error(2)
}

func (m *mockStripe) CancelAtPeriodEnd(ctx context.Context, id string) (model.Subscription, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Subscription), args.Error(1)
}

func (m *mockStripe) ParseWebhook(payload []byte, signature string) (stripepay.Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(stripepay.Event), args.Error(1)
}

type mockPaystack struct{ mock.Mock }

func (m *mockPaystack) InitializeTransaction(ctx context.Context, p paystack.CheckoutParams) (paystack.Checkout, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(paystack.Checkout), args.Error(1)
}

func (m *mockPaystack) FetchSubscription(ctx context.Context, code string) (paystack.Subscription, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(paystack.Subscription), args.Error(1)
}

func (m *mockPaystack) DisableSubscription(ctx context.Context, code, token string) error {
	return m.Called(ctx, code, token).Error(0)
}

func (m *mockPaystack) ParseWebhook(body []byte, signature string) (paystack.Event, error) {
	args := m.Called(body, signature)
	return args.Get(0).(paystack.Event), args.Error(1)
}

type mockScenes struct{ mock.Mock }

func (m *mockScenes) GenerateScenes(ctx context.Context, req llm.SceneRequest) ([]model.Scene, error) {
	args := m.Called(ctx, req)
	return args.Get(0).([]model.Scene), args.Error(1)
}

type mockSpeech struct{ mock.Mock }

func (m *mockSpeech) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	args := m.Called(ctx, text, voiceID)
	return args.Get(0).([]byte), args.Error(1)
}

type mockFootage struct{ mock.Mock }

func (m *mockFootage) Search(ctx context.Context, p pexels.SearchParams) ([]pexels.Video, error) {
	args := m.Called(ctx, p)
	return args.Get(0).([]pexels.Video), args.Error(1)
}

func (m *mockFootage) FirstFileURL(ctx context.Context, query, orientation string) (string, error) {
	args := m.Called(ctx, query, orientation)
	return args.String(0), args.Error(1)
}

func paystackSub() paystack.Subscription { return paystack.Subscription{} }

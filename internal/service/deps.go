// Package service holds SmartVid's business rules: quota checks,
// subscription reconciliation, billing, project CRUD, render orchestration
// and the generative media proxies.  Services depend on the narrow
// interfaces below so handlers and the worker can be tested without MySQL
// or the third-party APIs.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smartvid/smartvid/internal/integrations/paystack"
	"github.com/smartvid/smartvid/internal/integrations/stripepay"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/queue"
	"github.com/smartvid/smartvid/internal/repository"
)

// VideoStore is the subset of repository.VideoRepo used by services.
type VideoStore interface {
	Create(ctx context.Context, v *model.VideoProject, q repository.QuotaGate) error
	GetByID(ctx context.Context, id uint64) (model.VideoProject, error)
	GetForUser(ctx context.Context, id, userID uint64) (model.VideoProject, error)
	GetByRenderID(ctx context.Context, renderID string) (model.VideoProject, error)
	ListByUser(ctx context.Context, userID uint64, f repository.VideoFilter) ([]model.VideoProject, int64, error)
	CountSince(ctx context.Context, userID uint64, since time.Time) (int, error)
	UpdateContent(ctx context.Context, v model.VideoProject) error
	SetScenes(ctx context.Context, id, userID uint64, scenes json.RawMessage) error
	SetAudioURL(ctx context.Context, id, userID uint64, url string) error
	UpdateStatus(ctx context.Context, id uint64, u repository.StatusUpdate) error
	Delete(ctx context.Context, id, userID uint64) error
}

// SubscriptionStore is the subset of repository.SubscriptionRepo used by services.
type SubscriptionStore interface {
	Upsert(ctx context.Context, s model.Subscription) error
	ActiveForUser(ctx context.Context, userID uint64) (model.Subscription, error)
	LatestForUser(ctx context.Context, userID uint64) (model.Subscription, error)
	GetByProviderID(ctx context.Context, providerSubID string) (model.Subscription, error)
}

// QuotaStore persists usage snapshots.
type QuotaStore interface {
	Save(ctx context.Context, q model.UserQuota) error
}

// UserStore is the subset of repository.UserRepo used by services.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetProfile(ctx context.Context, userID uint64) (model.Profile, error)
	SetStripeCustomer(ctx context.Context, userID uint64, customerID string) error
	FindByStripeCustomer(ctx context.Context, customerID string) (uint64, error)
}

// NotificationStore creates notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}

// RenderLogStore records render state changes.
type RenderLogStore interface {
	Record(ctx context.Context, l model.RenderLog) error
}

// EventPublisher pushes realtime events to a user; realtime.Hub implements it.
type EventPublisher interface {
	Publish(ctx context.Context, userID uint64, typ string, data any) error
}

// RenderDispatcher enqueues render jobs; queue.Publisher implements it.
type RenderDispatcher interface {
	PublishRenderRequested(ctx context.Context, ev queue.RenderRequested) error
}

// StripeGateway is implemented by stripepay.Client.
type StripeGateway interface {
	EnsureCustomer(ctx context.Context, customerID, email string, userID uint64) (string, error)
	CreateCheckout(ctx context.Context, p stripepay.CheckoutParams) (stripepay.CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (model.Subscription, error)
	LatestSubscription(ctx context.Context, customerID string) (model.Subscription, bool, error)
	CancelAtPeriodEnd(ctx context.Context, id string) (model.Subscription, error)
	ParseWebhook(payload []byte, signature string) (stripepay.Event, error)
}

// PaystackGateway is implemented by paystack.Client.
type PaystackGateway interface {
	InitializeTransaction(ctx context.Context, p paystack.CheckoutParams) (paystack.Checkout, error)
	FetchSubscription(ctx context.Context, code string) (paystack.Subscription, error)
	DisableSubscription(ctx context.Context, code, emailToken string) error
	ParseWebhook(body []byte, signature string) (paystack.Event, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, uint64, string, any) error { return nil }

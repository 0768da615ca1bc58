package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
)

// Sources of a subscription status answer.
const (
	SourceDatabase = "database"
	SourceRemote   = "remote"
	SourceFallback = "fallback"
	SourceDefault  = "default"
)

var errNoRemote = errors.New("no remote subscription to check")

// SubscriptionStatus is the answer of GET /v1/subscription.
type SubscriptionStatus struct {
	Plan         string              `json:"plan"`
	Status       string              `json:"status"`
	Source       string              `json:"source"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
}

func statusFrom(sub model.Subscription, source string, now time.Time) SubscriptionStatus {
	plan := model.PlanFree
	if sub.IsLive(now) {
		plan = NormalizePlan(sub.Plan)
	}
	return SubscriptionStatus{Plan: plan, Status: sub.Status, Source: source, Subscription: &sub}
}

// SubscriptionService resolves a user's effective plan, consulting the
// payment providers at most once per interval per user.
type SubscriptionService struct {
	subs     SubscriptionStore
	users    UserStore
	stripe   StripeGateway
	paystack PaystackGateway
	events   EventPublisher
	throttle *checkThrottle
	log      *slog.Logger
	now      func() time.Time
}

// NewSubscriptionService wires the service.  stripe, paystack, events and
// rdb may be nil.
func NewSubscriptionService(subs SubscriptionStore, users UserStore, stripe StripeGateway, paystack PaystackGateway,
	events EventPublisher, rdb *redis.Client, every time.Duration, log *slog.Logger) *SubscriptionService {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	s := &SubscriptionService{
		subs:     subs,
		users:    users,
		stripe:   stripe,
		paystack: paystack,
		events:   events,
		log:      log,
		now:      time.Now,
	}
	s.throttle = newCheckThrottle(rdb, every, func() time.Time { return s.now() })
	return s
}

// Status walks database, remote provider, most recent row and finally
// the free default.
func (s *SubscriptionService) Status(ctx context.Context, userID uint64, force bool) (SubscriptionStatus, error) {
	now := s.now()
	active, err := s.subs.ActiveForUser(ctx, userID)
	if err == nil {
		return statusFrom(active, SourceDatabase, now), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return SubscriptionStatus{}, fmt.Errorf("subscription: load active: %w", err)
	}

	latest, err := s.subs.LatestForUser(ctx, userID)
	hasLatest := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return SubscriptionStatus{}, fmt.Errorf("subscription: load latest: %w", err)
	}

	if force || s.throttle.Allow(ctx, userID) {
		var prev *model.Subscription
		if hasLatest {
			prev = &latest
		}
		remote, err := s.checkRemote(ctx, userID, prev)
		switch {
		case err == nil:
			return statusFrom(remote, SourceRemote, now), nil
		case errors.Is(err, errNoRemote):
		default:
			s.log.Warn("subscription: remote check failed", "user_id", userID, "err", err)
		}
	}

	if hasLatest {
		return statusFrom(latest, SourceFallback, now), nil
	}
	return SubscriptionStatus{Plan: model.PlanFree, Status: model.SubActive, Source: SourceDefault}, nil
}

// checkRemote asks the provider that owns the user's latest subscription,
// or Stripe through the customer id on the profile.
func (s *SubscriptionService) checkRemote(ctx context.Context, userID uint64, prev *model.Subscription) (model.Subscription, error) {
	var (
		sub model.Subscription
		err error
	)
	switch {
	case prev != nil && prev.Provider == model.ProviderPaystack && s.paystack != nil:
		ps, ferr := s.paystack.FetchSubscription(ctx, prev.ProviderSubscriptionID)
		if ferr != nil {
			return sub, ferr
		}
		sub = ps.Subscription
	case s.stripe != nil:
		customerID := ""
		if prev != nil && prev.Provider == model.ProviderStripe {
			customerID = prev.ProviderCustomerID
		}
		if customerID == "" {
			p, perr := s.users.GetProfile(ctx, userID)
			if perr != nil {
				return sub, perr
			}
			customerID = p.StripeCustomerID
		}
		if customerID == "" {
			return sub, errNoRemote
		}
		var found bool
		sub, found, err = s.stripe.LatestSubscription(ctx, customerID)
		if err != nil {
			return sub, err
		}
		if !found {
			return sub, errNoRemote
		}
	default:
		return sub, errNoRemote
	}

	sub.UserID = userID
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return sub, fmt.Errorf("subscription: upsert: %w", err)
	}
	if prev == nil || changed(*prev, sub) {
		_ = s.events.Publish(ctx, userID, realtime.EventSubscriptionUpdated, statusFrom(sub, SourceRemote, s.now()))
	}
	return sub, nil
}

func changed(a, b model.Subscription) bool {
	if a.ProviderSubscriptionID != b.ProviderSubscriptionID || a.Plan != b.Plan || a.Status != b.Status ||
		a.CancelAtPeriodEnd != b.CancelAtPeriodEnd {
		return true
	}
	switch {
	case a.CurrentPeriodEnd == nil && b.CurrentPeriodEnd == nil:
		return false
	case a.CurrentPeriodEnd == nil || b.CurrentPeriodEnd == nil:
		return true
	}
	return !a.CurrentPeriodEnd.Equal(*b.CurrentPeriodEnd)
}

// checkThrottle allows one remote check per user per interval.  Redis
// coordinates across instances; without it each process keeps its own map.
type checkThrottle struct {
	rdb   *redis.Client
	every time.Duration
	now   func() time.Time

	mu   sync.Mutex
	last map[uint64]time.Time
}

func newCheckThrottle(rdb *redis.Client, every time.Duration, now func() time.Time) *checkThrottle {
	if every <= 0 {
		every = 30 * time.Second
	}
	return &checkThrottle{rdb: rdb, every: every, now: now, last: map[uint64]time.Time{}}
}

// Allow reports whether a remote check may run now and claims the slot.
func (t *checkThrottle) Allow(ctx context.Context, userID uint64) bool {
	if t.rdb != nil {
		key := "smartvid:subcheck:" + strconv.FormatUint(userID, 10)
		ok, err := t.rdb.SetNX(ctx, key, 1, t.every).Result()
		if err == nil {
			return ok
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.last[userID]; ok && now.Sub(last) < t.every {
		return false
	}
	t.last[userID] = now
	return true
}

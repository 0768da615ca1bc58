package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/integrations/email"
	"github.com/smartvid/smartvid/internal/integrations/paystack"
	"github.com/smartvid/smartvid/internal/integrations/stripepay"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/realtime"
	"github.com/smartvid/smartvid/internal/repository"
)

// Billing errors.
var (
	ErrInvalidPlan     = errors.New("plan cannot be purchased")
	ErrInvalidProvider = errors.New("unknown payment provider")
	ErrInvalidWebhook  = errors.New("invalid webhook")
)

// CheckoutResult is where the browser goes to pay.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// BillingService starts checkouts, cancels subscriptions and applies
// provider webhooks.
type BillingService struct {
	users    UserStore
	subs     SubscriptionStore
	usage    *UsageService
	notifier *Notifier
	stripe   StripeGateway
	paystack PaystackGateway
	events   EventPublisher
	log      *slog.Logger
}

// NewBillingService wires the service.  stripe, paystack and events may be nil.
func NewBillingService(users UserStore, subs SubscriptionStore, usage *UsageService, notifier *Notifier,
	stripe StripeGateway, paystack PaystackGateway, events EventPublisher, log *slog.Logger) *BillingService {
	if events == nil {
		events = nopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &BillingService{
		users:    users,
		subs:     subs,
		usage:    usage,
		notifier: notifier,
		stripe:   stripe,
		paystack: paystack,
		events:   events,
		log:      log,
	}
}

// StripeEnabled reports whether Stripe is configured.
func (s *BillingService) StripeEnabled() bool { return s.stripe != nil }

// PaystackEnabled reports whether Paystack is configured.
func (s *BillingService) PaystackEnabled() bool { return s.paystack != nil }

// Checkout starts a subscription purchase of plan through provider.
func (s *BillingService) Checkout(ctx context.Context, userID uint64, plan, provider string) (CheckoutResult, error) {
	if !IsPaidPlan(plan) {
		return CheckoutResult{}, fmt.Errorf("%w: %s", ErrInvalidPlan, plan)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return CheckoutResult{}, err
	}
	success := s.notifier.Link("/dashboard?checkout=success")
	switch provider {
	case model.ProviderStripe:
		if s.stripe == nil {
			return CheckoutResult{}, apperr.ErrDisabled
		}
		profile, err := s.users.GetProfile(ctx, userID)
		if err != nil {
			return CheckoutResult{}, err
		}
		customerID, err := s.stripe.EnsureCustomer(ctx, profile.StripeCustomerID, u.Email, userID)
		if err != nil {
			return CheckoutResult{}, err
		}
		if customerID != profile.StripeCustomerID {
			if err := s.users.SetStripeCustomer(ctx, userID, customerID); err != nil {
				return CheckoutResult{}, err
			}
		}
		sess, err := s.stripe.CreateCheckout(ctx, stripepay.CheckoutParams{
			UserID:     userID,
			CustomerID: customerID,
			Plan:       plan,
			SuccessURL: success,
			CancelURL:  s.notifier.Link("/pricing?checkout=cancelled"),
		})
		if err != nil {
			return CheckoutResult{}, err
		}
		return CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
	case model.ProviderPaystack:
		if s.paystack == nil {
			return CheckoutResult{}, apperr.ErrDisabled
		}
		tx, err := s.paystack.InitializeTransaction(ctx, paystack.CheckoutParams{
			UserID:      userID,
			Email:       u.Email,
			Plan:        plan,
			CallbackURL: success,
		})
		if err != nil {
			return CheckoutResult{}, err
		}
		return CheckoutResult{URL: tx.AuthorizationURL, SessionID: tx.Reference}, nil
	}
	return CheckoutResult{}, fmt.Errorf("%w: %s", ErrInvalidProvider, provider)
}

// Cancel stops renewal of the user's live subscription.  Access continues
// until the end of the paid period.
func (s *BillingService) Cancel(ctx context.Context, userID uint64) (model.Subscription, error) {
	sub, err := s.subs.ActiveForUser(ctx, userID)
	if err != nil {
		return model.Subscription{}, err
	}
	switch sub.Provider {
	case model.ProviderStripe:
		if s.stripe == nil {
			return sub, apperr.ErrDisabled
		}
		updated, err := s.stripe.CancelAtPeriodEnd(ctx, sub.ProviderSubscriptionID)
		if err != nil {
			return sub, err
		}
		updated.UserID = userID
		sub = updated
	case model.ProviderPaystack:
		if s.paystack == nil {
			return sub, apperr.ErrDisabled
		}
		remote, err := s.paystack.FetchSubscription(ctx, sub.ProviderSubscriptionID)
		if err != nil {
			return sub, err
		}
		if err := s.paystack.DisableSubscription(ctx, sub.ProviderSubscriptionID, remote.EmailToken); err != nil {
			return sub, err
		}
		sub.CancelAtPeriodEnd = true
	default:
		return sub, fmt.Errorf("%w: %s", ErrInvalidProvider, sub.Provider)
	}
	if err := s.apply(ctx, sub, "Subscription cancelled",
		fmt.Sprintf("Your %s plan will not renew. You keep access until the end of the current period.", sub.Plan)); err != nil {
		return sub, err
	}
	return sub, nil
}

// ApplyStripeEvent verifies and applies a Stripe webhook.  Events that do
// not concern subscriptions are ignored.
func (s *BillingService) ApplyStripeEvent(ctx context.Context, payload []byte, signature string) error {
	if s.stripe == nil {
		return apperr.ErrDisabled
	}
	ev, err := s.stripe.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	log := s.log.With("provider", model.ProviderStripe, "event", ev.Type, "event_id", ev.ID)

	switch ev.Type {
	case stripepay.EventCheckoutCompleted:
		if ev.UserID != 0 && ev.CustomerID != "" {
			if err := s.users.SetStripeCustomer(ctx, ev.UserID, ev.CustomerID); err != nil {
				return err
			}
		}
		if ev.SubscriptionID == "" {
			log.Info("webhook: checkout without subscription ignored")
			return nil
		}
		sub, err := s.stripe.GetSubscription(ctx, ev.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.UserID == 0 {
			sub.UserID = ev.UserID
		}
		if sub.Plan == model.PlanFree && IsPaidPlan(ev.Plan) {
			sub.Plan = ev.Plan
		}
		return s.applyResolved(ctx, log, sub, "Subscription activated",
			fmt.Sprintf("Welcome to the %s plan.", sub.Plan))

	case stripepay.EventSubscriptionCreated, stripepay.EventSubscriptionUpdated, stripepay.EventSubscriptionDeleted:
		if ev.Subscription == nil {
			return nil
		}
		sub := *ev.Subscription
		title := "Subscription updated"
		msg := fmt.Sprintf("Your %s plan is now %s.", sub.Plan, sub.Status)
		if ev.Type == stripepay.EventSubscriptionDeleted {
			title = "Subscription ended"
			msg = "Your subscription has ended and your account is back on the free plan."
		}
		return s.applyResolved(ctx, log, sub, title, msg)

	case stripepay.EventPaymentFailed:
		return s.paymentFailed(ctx, log, ev.SubscriptionID, func() uint64 {
			id, _ := s.users.FindByStripeCustomer(ctx, ev.CustomerID)
			return id
		})
	}
	log.Debug("webhook: event ignored")
	return nil
}

// ApplyPaystackEvent verifies and applies a Paystack webhook.
func (s *BillingService) ApplyPaystackEvent(ctx context.Context, body []byte, signature string) error {
	if s.paystack == nil {
		return apperr.ErrDisabled
	}
	ev, err := s.paystack.ParseWebhook(body, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	log := s.log.With("provider", model.ProviderPaystack, "event", ev.Type)
	byEmail := func() uint64 {
		if ev.UserID != 0 {
			return ev.UserID
		}
		if strings.TrimSpace(ev.CustomerEmail) == "" {
			return 0
		}
		u, err := s.users.GetByEmail(ctx, ev.CustomerEmail)
		if err != nil {
			return 0
		}
		return u.ID
	}

	switch ev.Type {
	case paystack.EventSubscriptionCreate, paystack.EventSubscriptionDisable, paystack.EventSubscriptionNotRenew:
		if ev.Subscription == nil {
			return nil
		}
		sub := ev.Subscription.Subscription
		if sub.UserID == 0 {
			sub.UserID = byEmail()
		}
		title, msg := "Subscription updated", fmt.Sprintf("Your %s plan is now %s.", sub.Plan, sub.Status)
		switch ev.Type {
		case paystack.EventSubscriptionCreate:
			title, msg = "Subscription activated", fmt.Sprintf("Welcome to the %s plan.", sub.Plan)
		case paystack.EventSubscriptionNotRenew:
			title, msg = "Subscription cancelled", fmt.Sprintf("Your %s plan will not renew.", sub.Plan)
		case paystack.EventSubscriptionDisable:
			title, msg = "Subscription ended", "Your subscription has ended and your account is back on the free plan."
		}
		return s.applyResolved(ctx, log, sub, title, msg)

	case paystack.EventChargeSuccess:
		if !IsPaidPlan(ev.Plan) {
			log.Debug("webhook: charge without plan ignored")
			return nil
		}
		userID := byEmail()
		if userID == 0 {
			log.Warn("webhook: charge for unknown customer", "customer", ev.CustomerCode)
			return nil
		}
		// the subscription row arrives with subscription.create
		if _, err := s.usage.Check(ctx, userID); err != nil {
			log.Warn("webhook: refresh usage failed", "user_id", userID, "err", err)
		}
		_ = s.notifier.Notify(ctx, userID, model.NotifySubscription, "Payment received",
			fmt.Sprintf("Thanks! Your payment for the %s plan was received.", ev.Plan), s.notifier.Link("/dashboard"))
		_ = s.events.Publish(ctx, userID, realtime.EventSubscriptionUpdated, map[string]string{"plan": ev.Plan})
		return nil

	case paystack.EventPaymentFailed:
		code := ""
		if ev.Subscription != nil {
			code = ev.Subscription.ProviderSubscriptionID
		}
		return s.paymentFailed(ctx, log, code, byEmail)
	}
	log.Debug("webhook: event ignored")
	return nil
}

// applyResolved fills a missing user id from the stored row or the Stripe
// customer before applying.  Subscriptions that cannot be attributed to
// a user are logged and dropped.
func (s *BillingService) applyResolved(ctx context.Context, log *slog.Logger, sub model.Subscription, title, msg string) error {
	if sub.UserID == 0 && sub.ProviderSubscriptionID != "" {
		if existing, err := s.subs.GetByProviderID(ctx, sub.ProviderSubscriptionID); err == nil {
			sub.UserID = existing.UserID
		}
	}
	if sub.UserID == 0 && sub.Provider == model.ProviderStripe && sub.ProviderCustomerID != "" {
		if id, err := s.users.FindByStripeCustomer(ctx, sub.ProviderCustomerID); err == nil {
			sub.UserID = id
		}
	}
	if sub.UserID == 0 {
		log.Warn("webhook: subscription without user ignored", "subscription", sub.ProviderSubscriptionID)
		return nil
	}
	return s.apply(ctx, sub, title, msg)
}

func (s *BillingService) paymentFailed(ctx context.Context, log *slog.Logger, subID string, resolve func() uint64) error {
	var userID uint64
	if subID != "" {
		sub, err := s.subs.GetByProviderID(ctx, subID)
		switch {
		case err == nil:
			sub.Status = model.SubPastDue
			if err := s.subs.Upsert(ctx, sub); err != nil {
				return err
			}
			userID = sub.UserID
			_ = s.events.Publish(ctx, userID, realtime.EventSubscriptionUpdated, statusFrom(sub, SourceRemote, time.Now()))
		case errors.Is(err, repository.ErrNotFound):
		default:
			return err
		}
	}
	if userID == 0 {
		userID = resolve()
	}
	if userID == 0 {
		log.Warn("webhook: payment failure for unknown customer")
		return nil
	}
	if _, err := s.usage.Check(ctx, userID); err != nil {
		log.Warn("webhook: refresh usage failed", "user_id", userID, "err", err)
	}
	_ = s.notifier.Notify(ctx, userID, model.NotifyPaymentFailed, "Payment failed",
		"We could not charge your payment method. Please update it to keep your plan.", s.notifier.Link("/dashboard/billing"))
	return nil
}

// apply stores sub, refreshes the quota snapshot and tells the user.
func (s *BillingService) apply(ctx context.Context, sub model.Subscription, title, msg string) error {
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("billing: upsert subscription: %w", err)
	}
	if _, err := s.usage.Check(ctx, sub.UserID); err != nil {
		s.log.Warn("billing: refresh usage failed", "user_id", sub.UserID, "err", err)
	}
	link := s.notifier.Link("/dashboard/billing")
	_ = s.notifier.Notify(ctx, sub.UserID, model.NotifySubscription, title, msg, link)
	_ = s.events.Publish(ctx, sub.UserID, realtime.EventSubscriptionUpdated, statusFrom(sub, SourceRemote, time.Now()))
	_ = s.notifier.Email(ctx, sub.UserID, func(to string) email.Message {
		return email.SubscriptionChanged(to, sub.Plan, sub.Status, link)
	})
	return nil
}

// Package stripepay wraps the Stripe API for subscription checkout,
// subscription lookups and webhook verification.
package stripepay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/smartvid/smartvid/internal/model"
)

// ErrUnknownPlan is returned when no price is configured for a plan.
var ErrUnknownPlan = errors.New("no stripe price configured for plan")

// Client is a thin layer over the stripe-go API client.
type Client struct {
	api           *client.API
	prices        map[string]string // plan -> price id
	plans         map[string]string // price id -> plan
	webhookSecret string
}

// New returns a client for the live Stripe API.
func New(secretKey, webhookSecret string, prices map[string]string) *Client {
	return newClient(client.New(secretKey, nil), webhookSecret, prices)
}

// NewWithBackendURL returns a client whose API calls go to baseURL.
func NewWithBackendURL(secretKey, webhookSecret string, prices map[string]string, baseURL string) *Client {
	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return newClient(client.New(secretKey, backends), webhookSecret, prices)
}

func newClient(api *client.API, webhookSecret string, prices map[string]string) *Client {
	c := &Client{api: api, prices: map[string]string{}, plans: map[string]string{}, webhookSecret: webhookSecret}
	for plan, price := range prices {
		if price == "" {
			continue
		}
		c.prices[plan] = price
		c.plans[price] = plan
	}
	return c
}

// PlanForPrice maps a price id back to a plan; unknown prices are free.
func (c *Client) PlanForPrice(priceID string) string {
	if plan, ok := c.plans[priceID]; ok {
		return plan
	}
	return model.PlanFree
}

// EnsureCustomer returns customerID when set, otherwise creates a Stripe
// customer for the user.
func (c *Client) EnsureCustomer(ctx context.Context, customerID, email string, userID uint64) (string, error) {
	if customerID != "" {
		return customerID, nil
	}
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("user_id", strconv.FormatUint(userID, 10))
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cus.ID, nil
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	UserID     uint64
	CustomerID string
	Plan       string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the created session.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckout opens a subscription-mode Checkout Session.
func (c *Client) CreateCheckout(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	price, ok := c.prices[p.Plan]
	if !ok {
		return CheckoutSession{}, fmt.Errorf("%w: %s", ErrUnknownPlan, p.Plan)
	}
	userID := strconv.FormatUint(p.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("plan", p.Plan)
	params.SubscriptionData.AddMetadata("user_id", userID)
	params.SubscriptionData.AddMetadata("plan", p.Plan)
	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe create checkout: %w", err)
	}
	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// GetSubscription loads one subscription.
func (c *Client) GetSubscription(ctx context.Context, id string) (model.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return model.Subscription{}, fmt.Errorf("stripe get subscription: %w", err)
	}
	return c.Normalize(s), nil
}

// LatestSubscription returns the customer's most relevant subscription:
// a live one if any, otherwise the most recently started.
func (c *Client) LatestSubscription(ctx context.Context, customerID string) (model.Subscription, bool, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(10)
	it := c.api.Subscriptions.List(params)
	var (
		best  model.Subscription
		found bool
	)
	now := time.Now()
	for it.Next() {
		s := c.Normalize(it.Subscription())
		switch {
		case !found:
			best, found = s, true
		case s.IsLive(now) && !best.IsLive(now):
			best = s
		case s.IsLive(now) == best.IsLive(now) && startOf(s).After(startOf(best)):
			best = s
		}
	}
	if err := it.Err(); err != nil {
		return model.Subscription{}, false, fmt.Errorf("stripe list subscriptions: %w", err)
	}
	return best, found, nil
}

func startOf(s model.Subscription) time.Time {
	if s.CurrentPeriodStart == nil {
		return time.Time{}
	}
	return *s.CurrentPeriodStart
}

// CancelAtPeriodEnd schedules the subscription to end with its period.
func (c *Client) CancelAtPeriodEnd(ctx context.Context, id string) (model.Subscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	s, err := c.api.Subscriptions.Update(id, params)
	if err != nil {
		return model.Subscription{}, fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return c.Normalize(s), nil
}

// Normalize converts a Stripe subscription into the local row.  UserID is
// taken from the user_id metadata when present.
func (c *Client) Normalize(s *stripe.Subscription) model.Subscription {
	out := model.Subscription{
		Provider:               model.ProviderStripe,
		ProviderSubscriptionID: s.ID,
		Status:                 NormalizeStatus(s.Status),
		CancelAtPeriodEnd:      s.CancelAtPeriodEnd,
		Plan:                   model.PlanFree,
	}
	if s.Customer != nil {
		out.ProviderCustomerID = s.Customer.ID
	}
	if s.CurrentPeriodStart > 0 {
		t := time.Unix(s.CurrentPeriodStart, 0).UTC()
		out.CurrentPeriodStart = &t
	}
	if s.CurrentPeriodEnd > 0 {
		t := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item.Price != nil {
				if plan := c.PlanForPrice(item.Price.ID); plan != model.PlanFree {
					out.Plan = plan
					break
				}
			}
		}
	}
	if out.Plan == model.PlanFree && s.Metadata["plan"] != "" {
		out.Plan = s.Metadata["plan"]
	}
	if id, err := strconv.ParseUint(s.Metadata["user_id"], 10, 64); err == nil {
		out.UserID = id
	}
	return out
}

// NormalizeStatus folds Stripe's statuses into the local set.
func NormalizeStatus(s stripe.SubscriptionStatus) string {
	switch s {
	case stripe.SubscriptionStatusActive:
		return model.SubActive
	case stripe.SubscriptionStatusTrialing:
		return model.SubTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return model.SubPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubCanceled
	default:
		return model.SubIncomplete
	}
}

// Webhook event kinds.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentFailed       = "invoice.payment_failed"
)

// Event is a verified webhook reduced to what the service needs.
type Event struct {
	ID             string
	Type           string
	CustomerID     string
	SubscriptionID string
	UserID         uint64
	Plan           string
	// Subscription is set for customer.subscription.* events.
	Subscription *model.Subscription
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
// Types the service does not handle are returned with only ID and Type.
func (c *Client) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("stripe webhook: %w", err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return out, fmt.Errorf("stripe webhook: decode session: %w", err)
		}
		if s.Customer != nil {
			out.CustomerID = s.Customer.ID
		}
		if s.Subscription != nil {
			out.SubscriptionID = s.Subscription.ID
		}
		out.Plan = s.Metadata["plan"]
		ref := s.ClientReferenceID
		if ref == "" {
			ref = s.Metadata["user_id"]
		}
		if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
			out.UserID = id
		}
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return out, fmt.Errorf("stripe webhook: decode subscription: %w", err)
		}
		sub := c.Normalize(&s)
		if out.Type == EventSubscriptionDeleted {
			sub.Status = model.SubCanceled
		}
		out.Subscription = &sub
		out.CustomerID = sub.ProviderCustomerID
		out.SubscriptionID = sub.ProviderSubscriptionID
		out.UserID = sub.UserID
		out.Plan = sub.Plan
	case EventPaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return out, fmt.Errorf("stripe webhook: decode invoice: %w", err)
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
	}
	return out, nil
}

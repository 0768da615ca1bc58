// Package paystack talks to the Paystack REST API for subscription
// checkout and verifies its webhooks.
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smartvid/smartvid/internal/integrations/apiclient"
	"github.com/smartvid/smartvid/internal/model"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "x-paystack-signature"

// ErrUnknownPlan is returned when no plan code is configured for a plan.
var ErrUnknownPlan = errors.New("no paystack plan configured for plan")

// ErrBadSignature is returned for webhooks whose signature does not match.
var ErrBadSignature = errors.New("paystack webhook: invalid signature")

// Client calls the Paystack API.
type Client struct {
	baseURL   string
	secretKey string
	plans     map[string]string // plan -> plan code
	codes     map[string]string // plan code -> plan
	api       *apiclient.Client
}

// New returns a Paystack client.
func New(secretKey string, plans map[string]string, api *apiclient.Client) *Client {
	if api == nil {
		api = apiclient.New()
	}
	c := &Client{baseURL: "https://api.paystack.co", secretKey: secretKey, plans: map[string]string{}, codes: map[string]string{}, api: api}
	for plan, code := range plans {
		if code == "" {
			continue
		}
		c.plans[plan] = code
		c.codes[code] = plan
	}
	return c
}

// WithBaseURL points the client at another host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// PlanForCode maps a plan code back to a plan; unknown codes are free.
func (c *Client) PlanForCode(code string) string {
	if plan, ok := c.codes[code]; ok {
		return plan
	}
	return model.PlanFree
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) call(ctx context.Context, op, method, path string, in, out any) error {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.secretKey)
	var env envelope
	if err := c.api.DoJSON(ctx, apiclient.Request{Op: op, Method: method, URL: c.baseURL + path, Header: h}, in, &env); err != nil {
		return err
	}
	if !env.Status {
		return fmt.Errorf("%s: %s", op, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s: decode data: %w", op, err)
		}
	}
	return nil
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	UserID      uint64
	Email       string
	Plan        string
	CallbackURL string
}

// Checkout is an initialised transaction.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction starts a payment that subscribes the customer to
// the plan's code.  Paystack replaces the amount with the plan amount.
func (c *Client) InitializeTransaction(ctx context.Context, p CheckoutParams) (Checkout, error) {
	code, ok := c.plans[p.Plan]
	if !ok {
		return Checkout{}, fmt.Errorf("%w: %s", ErrUnknownPlan, p.Plan)
	}
	body := map[string]any{
		"email":        p.Email,
		"amount":       "100",
		"plan":         code,
		"callback_url": p.CallbackURL,
		"metadata": map[string]string{
			"user_id": strconv.FormatUint(p.UserID, 10),
			"plan":    p.Plan,
		},
	}
	var out Checkout
	if err := c.call(ctx, "paystack initialize", http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return Checkout{}, err
	}
	return out, nil
}

type subscriptionData struct {
	SubscriptionCode string `json:"subscription_code"`
	EmailToken       string `json:"email_token"`
	Status           string `json:"status"`
	NextPaymentDate  string `json:"next_payment_date"`
	CreatedAt        string `json:"createdAt"`
	Plan             struct {
		PlanCode string `json:"plan_code"`
		Interval string `json:"interval"`
	} `json:"plan"`
	Customer struct {
		CustomerCode string `json:"customer_code"`
		Email        string `json:"email"`
	} `json:"customer"`
}

// Subscription is a Paystack subscription mapped onto the local row,
// plus the email token required to disable it.
type Subscription struct {
	model.Subscription
	EmailToken    string
	CustomerEmail string
}

// FetchSubscription loads a subscription by code.
func (c *Client) FetchSubscription(ctx context.Context, code string) (Subscription, error) {
	var d subscriptionData
	if err := c.call(ctx, "paystack fetch subscription", http.MethodGet, "/subscription/"+url.PathEscape(code), nil, &d); err != nil {
		return Subscription{}, err
	}
	return c.normalize(d), nil
}

// DisableSubscription stops renewals.
func (c *Client) DisableSubscription(ctx context.Context, code, emailToken string) error {
	return c.call(ctx, "paystack disable subscription", http.MethodPost, "/subscription/disable",
		map[string]string{"code": code, "token": emailToken}, nil)
}

func (c *Client) normalize(d subscriptionData) Subscription {
	s := Subscription{
		Subscription: model.Subscription{
			Provider:               model.ProviderPaystack,
			ProviderCustomerID:     d.Customer.CustomerCode,
			ProviderSubscriptionID: d.SubscriptionCode,
			Plan:                   c.PlanForCode(d.Plan.PlanCode),
		},
		EmailToken:    d.EmailToken,
		CustomerEmail: d.Customer.Email,
	}
	s.Status, s.CancelAtPeriodEnd = NormalizeStatus(d.Status)
	if end, ok := parseTime(d.NextPaymentDate); ok {
		s.CurrentPeriodEnd = &end
		start := PeriodStart(end, d.Plan.Interval)
		s.CurrentPeriodStart = &start
	} else if created, ok := parseTime(d.CreatedAt); ok {
		s.CurrentPeriodStart = &created
	}
	return s
}

// NormalizeStatus maps a Paystack status to the local status and whether
// the subscription ends with the current period.
func NormalizeStatus(s string) (string, bool) {
	switch strings.ToLower(s) {
	case "active":
		return model.SubActive, false
	case "non-renewing":
		return model.SubActive, true
	case "attention":
		return model.SubPastDue, false
	case "complete", "completed", "cancelled", "canceled":
		return model.SubCanceled, false
	default:
		return model.SubIncomplete, false
	}
}

// PeriodStart derives the start of the billing period ending at end.
func PeriodStart(end time.Time, interval string) time.Time {
	switch strings.ToLower(interval) {
	case "daily":
		return end.AddDate(0, 0, -1)
	case "weekly":
		return end.AddDate(0, 0, -7)
	case "quarterly":
		return end.AddDate(0, -3, 0)
	case "biannually":
		return end.AddDate(0, -6, 0)
	case "annually":
		return end.AddDate(-1, 0, 0)
	default:
		return end.AddDate(0, -1, 0)
	}
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// VerifySignature checks the hex HMAC-SHA512 of body keyed with the secret.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	if c.secretKey == "" || signature == "" {
		return false
	}
	want := Sign(c.secretKey, body)
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(signature))), []byte(want))
}

// Sign returns the signature Paystack would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Webhook event names.
const (
	EventSubscriptionCreate   = "subscription.create"
	EventChargeSuccess        = "charge.success"
	EventSubscriptionDisable  = "subscription.disable"
	EventSubscriptionNotRenew = "subscription.not_renew"
	EventPaymentFailed        = "invoice.payment_failed"
)

// Event is a verified webhook reduced to what the service needs.
type Event struct {
	Type          string
	UserID        uint64
	Plan          string
	CustomerCode  string
	CustomerEmail string
	// Subscription is set when the payload carries a subscription.
	Subscription *Subscription
}

type eventPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type chargeData struct {
	Reference string          `json:"reference"`
	Metadata  json.RawMessage `json:"metadata"`
	Plan      json.RawMessage `json:"plan"`
	Customer  struct {
		CustomerCode string `json:"customer_code"`
		Email        string `json:"email"`
	} `json:"customer"`
}

type invoiceData struct {
	Subscription subscriptionData `json:"subscription"`
	Customer     struct {
		CustomerCode string `json:"customer_code"`
		Email        string `json:"email"`
	} `json:"customer"`
}

// ParseWebhook verifies and decodes a webhook body.
func (c *Client) ParseWebhook(body []byte, signature string) (Event, error) {
	if !c.VerifySignature(body, signature) {
		return Event{}, ErrBadSignature
	}
	var p eventPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("paystack webhook: decode: %w", err)
	}
	ev := Event{Type: p.Event}
	switch p.Event {
	case EventSubscriptionCreate, EventSubscriptionDisable, EventSubscriptionNotRenew:
		var d subscriptionData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return ev, fmt.Errorf("paystack webhook: decode subscription: %w", err)
		}
		sub := c.normalize(d)
		switch p.Event {
		case EventSubscriptionDisable:
			sub.Status = model.SubCanceled
		case EventSubscriptionNotRenew:
			sub.CancelAtPeriodEnd = true
		}
		ev.Subscription = &sub
		ev.Plan = sub.Plan
		ev.CustomerCode = sub.ProviderCustomerID
		ev.CustomerEmail = sub.CustomerEmail
	case EventChargeSuccess:
		var d chargeData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return ev, fmt.Errorf("paystack webhook: decode charge: %w", err)
		}
		ev.CustomerCode = d.Customer.CustomerCode
		ev.CustomerEmail = d.Customer.Email
		meta := decodeMetadata(d.Metadata)
		ev.Plan = meta["plan"]
		if id, err := strconv.ParseUint(meta["user_id"], 10, 64); err == nil {
			ev.UserID = id
		}
		var plan struct {
			PlanCode string `json:"plan_code"`
		}
		if len(d.Plan) > 0 && json.Unmarshal(d.Plan, &plan) == nil && plan.PlanCode != "" {
			ev.Plan = c.PlanForCode(plan.PlanCode)
		}
	case EventPaymentFailed:
		var d invoiceData
		if err := json.Unmarshal(p.Data, &d); err != nil {
			return ev, fmt.Errorf("paystack webhook: decode invoice: %w", err)
		}
		ev.CustomerCode = d.Customer.CustomerCode
		ev.CustomerEmail = d.Customer.Email
		if d.Subscription.SubscriptionCode != "" {
			sub := c.normalize(d.Subscription)
			sub.Status = model.SubPastDue
			if sub.ProviderCustomerID == "" {
				sub.ProviderCustomerID = ev.CustomerCode
			}
			ev.Subscription = &sub
			ev.Plan = sub.Plan
		}
	}
	if ev.Subscription != nil && ev.UserID != 0 {
		ev.Subscription.UserID = ev.UserID
	}
	return ev, nil
}

// decodeMetadata accepts metadata as an object or as a JSON-encoded string.
func decodeMetadata(raw json.RawMessage) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		raw = json.RawMessage(s)
	}
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return out
	}
	for k, v := range m {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		}
	}
	return out
}

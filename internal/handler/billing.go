package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartvid/smartvid/internal/apperr"
	"github.com/smartvid/smartvid/internal/middleware"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/service"
)

// Biller starts checkouts, cancels renewals and applies provider webhooks.
type Biller interface {
	Checkout(ctx context.Context, userID uint64, plan, provider string) (service.CheckoutResult, error)
	Cancel(ctx context.Context, userID uint64) (model.Subscription, error)
	ApplyStripeEvent(ctx context.Context, payload []byte, signature string) error
	ApplyPaystackEvent(ctx context.Context, body []byte, signature string) error
}

// SubscriptionReader resolves a user's effective plan.
type SubscriptionReader interface {
	Status(ctx context.Context, userID uint64, force bool) (service.SubscriptionStatus, error)
}

// UsageChecker computes the quota picture.
type UsageChecker interface {
	Check(ctx context.Context, userID uint64) (service.Usage, error)
}

// BillingHandler serves usage, subscription, checkout and webhook routes.
type BillingHandler struct {
	Billing       Biller
	Subscriptions SubscriptionReader
	Usage         UsageChecker
}

func NewBillingHandler(b Biller, s SubscriptionReader, u UsageChecker) *BillingHandler {
	return &BillingHandler{Billing: b, Subscriptions: s, Usage: u}
}

// maxWebhookBody bounds webhook payloads read into memory.
const maxWebhookBody = 1 << 20

type checkoutReq struct {
	Plan     string `json:"plan" validate:"required,plan"`
	Provider string `json:"provider" validate:"omitempty,provider"`
}

// GetUsage returns the caller's quota for the current period.
func (h *BillingHandler) GetUsage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Usage.Check(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// GetSubscription returns the caller's effective plan.  ?force=true skips
// the remote-check throttle.
func (h *BillingHandler) GetSubscription(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	st, err := h.Subscriptions.Status(ctx, uid, queryBool(c, "force"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Checkout starts a purchase and returns the provider URL.
func (h *BillingHandler) Checkout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req checkoutReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = model.ProviderStripe
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	res, err := h.Billing.Checkout(ctx, uid, strings.ToLower(req.Plan), provider)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CancelSubscription stops renewal at the end of the paid period.
func (h *BillingHandler) CancelSubscription(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	sub, err := h.Billing.Cancel(ctx, uid)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no active subscription"})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sub)
}

// StripeWebhook verifies and applies a Stripe event.
func (h *BillingHandler) StripeWebhook(c echo.Context) error {
	return h.webhook(c, "Stripe-Signature", h.Billing.ApplyStripeEvent)
}

// PaystackWebhook verifies and applies a Paystack event.
func (h *BillingHandler) PaystackWebhook(c echo.Context) error {
	return h.webhook(c, "x-paystack-signature", h.Billing.ApplyPaystackEvent)
}

// webhook answers 400 for bad signatures so the provider stops retrying,
// and 500 for anything else so it retries later.
func (h *BillingHandler) webhook(c echo.Context, header string, apply func(context.Context, []byte, string) error) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "read body failed"})
	}
	sig := c.Request().Header.Get(header)
	if sig == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing signature"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	if err := apply(ctx, body, sig); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidWebhook):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid webhook"})
		case errors.Is(err, apperr.ErrDisabled):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "integration not configured"})
		}
		middleware.Logger(c).Error("webhook: processing failed", "route", c.Path(), "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

package model

import "time"

// Plans.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Payment providers.
const (
	ProviderStripe   = "stripe"
	ProviderPaystack = "paystack"
)

// Subscription statuses, normalised across providers.
const (
	SubActive     = "active"
	SubTrialing   = "trialing"
	SubPastDue    = "past_due"
	SubCanceled   = "canceled"
	SubIncomplete = "incomplete"
)

// Subscription is a row of `subscriptions`, keyed by the provider's
// subscription id.
type Subscription struct {
	ID                     uint64     `json:"id"`
	UserID                 uint64     `json:"user_id"`
	Provider               string     `json:"provider"`
	ProviderCustomerID     string     `json:"-"`
	ProviderSubscriptionID string     `json:"provider_subscription_id"`
	Plan                   string     `json:"plan"`
	Status                 string     `json:"status"`
	CurrentPeriodStart     *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsLive reports whether the subscription currently grants its plan.
func (s Subscription) IsLive(now time.Time) bool {
	if s.Status != SubActive && s.Status != SubTrialing {
		return false
	}
	return s.CurrentPeriodEnd == nil || s.CurrentPeriodEnd.After(now)
}

// UserQuota is the cached usage snapshot in `user_quotas`.
type UserQuota struct {
	UserID      uint64    `json:"user_id"`
	Plan        string    `json:"plan"`
	VideoLimit  int       `json:"video_limit"`
	VideosUsed  int       `json:"videos_used"`
	PeriodStart time.Time `json:"period_start"`
	UpdatedAt   time.Time `json:"updated_at"`
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/smartvid/smartvid/internal/model"
)

// SubscriptionRepo provides access to `subscriptions`.
type SubscriptionRepo struct{ db *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const subscriptionColumns = `id, user_id, provider, provider_customer_id, provider_subscription_id, plan, status,
	current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(s rowScanner) (model.Subscription, error) {
	var (
		sub        model.Subscription
		start, end sql.NullTime
	)
	err := s.Scan(&sub.ID, &sub.UserID, &sub.Provider, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID,
		&sub.Plan, &sub.Status, &start, &end, &sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	sub.CurrentPeriodStart = nullTimePtr(start)
	sub.CurrentPeriodEnd = nullTimePtr(end)
	return sub, err
}

// Upsert inserts or updates a subscription keyed by its provider id.
func (r *SubscriptionRepo) Upsert(ctx context.Context, s model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, provider, provider_customer_id, provider_subscription_id, plan, status,
			current_period_start, current_period_end, cancel_at_period_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
			provider_customer_id = IF(VALUES(provider_customer_id) = '', provider_customer_id, VALUES(provider_customer_id)),
			plan = VALUES(plan),
			status = VALUES(status),
			current_period_start = COALESCE(VALUES(current_period_start), current_period_start),
			current_period_end = COALESCE(VALUES(current_period_end), current_period_end),
			cancel_at_period_end = VALUES(cancel_at_period_end),
			updated_at = CURRENT_TIMESTAMP`,
		s.UserID, s.Provider, s.ProviderCustomerID, s.ProviderSubscriptionID, s.Plan, s.Status,
		timeArg(s.CurrentPeriodStart), timeArg(s.CurrentPeriodEnd), s.CancelAtPeriodEnd)
	return err
}

// ActiveForUser returns the user's live subscription: active or trialing
// with a period end in the future (or unknown).  The most recently
// started one wins.
func (r *SubscriptionRepo) ActiveForUser(ctx context.Context, userID uint64) (model.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = ? AND status IN ('active', 'trialing')
		   AND (current_period_end IS NULL OR current_period_end > UTC_TIMESTAMP())
		 ORDER BY current_period_start DESC, id DESC LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// LatestForUser returns the most recently updated subscription of any status.
func (r *SubscriptionRepo) LatestForUser(ctx context.Context, userID uint64) (model.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1`,
		userID))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// GetByProviderID loads a subscription by the provider's id.
func (r *SubscriptionRepo) GetByProviderID(ctx context.Context, providerSubID string) (model.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = ?`, providerSubID))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

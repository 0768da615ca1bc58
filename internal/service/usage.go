package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/repository"
)

// UsageService answers "how many videos may this user still create".
type UsageService struct {
	videos VideoStore
	subs   SubscriptionStore
	quotas QuotaStore
	log    *slog.Logger
}

// NewUsageService wires a UsageService.  quotas may be nil.
func NewUsageService(videos VideoStore, subs SubscriptionStore, quotas QuotaStore, log *slog.Logger) *UsageService {
	if log == nil {
		log = slog.Default()
	}
	return &UsageService{videos: videos, subs: subs, quotas: quotas, log: log}
}

// Check computes the user's usage for the current period and stores the
// snapshot in user_quotas.  Paid plans count from the subscription's
// period start; the free plan counts every project ever created.
func (s *UsageService) Check(ctx context.Context, userID uint64) (Usage, error) {
	plan := model.PlanFree
	var start time.Time
	var end *time.Time

	sub, err := s.subs.ActiveForUser(ctx, userID)
	switch {
	case err == nil:
		plan = NormalizePlan(sub.Plan)
		if plan != model.PlanFree && sub.CurrentPeriodStart != nil {
			start = *sub.CurrentPeriodStart
			end = sub.CurrentPeriodEnd
		}
	case errors.Is(err, repository.ErrNotFound):
	default:
		return Usage{}, fmt.Errorf("usage: load subscription: %w", err)
	}

	used, err := s.videos.CountSince(ctx, userID, start)
	if err != nil {
		return Usage{}, fmt.Errorf("usage: count videos: %w", err)
	}

	u := ComputeUsage(plan, used)
	if !start.IsZero() {
		u.PeriodStart = &start
		u.PeriodEnd = end
	}

	if s.quotas != nil {
		snap := model.UserQuota{UserID: userID, Plan: u.Plan, VideoLimit: u.Limit, VideosUsed: u.Used, PeriodStart: start}
		if err := s.quotas.Save(ctx, snap); err != nil {
			s.log.Warn("usage: save quota snapshot failed", "user_id", userID, "err", err)
		}
	}
	return u, nil
}

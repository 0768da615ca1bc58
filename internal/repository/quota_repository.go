package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/smartvid/smartvid/internal/model"
)

// QuotaRepo stores the usage snapshot in `user_quotas`.
type QuotaRepo struct{ db *sql.DB }

func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

// Get returns the stored snapshot for a user.
func (r *QuotaRepo) Get(ctx context.Context, userID uint64) (model.UserQuota, error) {
	var q model.UserQuota
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id, plan, video_limit, videos_used, period_start, updated_at FROM user_quotas WHERE user_id = ?",
		userID).Scan(&q.UserID, &q.Plan, &q.VideoLimit, &q.VideosUsed, &q.PeriodStart, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return q, ErrNotFound
	}
	return q, err
}

// Save writes a snapshot, creating the row if needed.
func (r *QuotaRepo) Save(ctx context.Context, q model.UserQuota) error {
	start := q.PeriodStart.UTC()
	if start.Unix() < 1 {
		// MySQL DATETIME cannot hold the zero time; lifetime quotas start at the epoch
		start = epoch
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_quotas (user_id, plan, video_limit, videos_used, period_start)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE plan = VALUES(plan), video_limit = VALUES(video_limit),
			videos_used = VALUES(videos_used), period_start = VALUES(period_start), updated_at = CURRENT_TIMESTAMP`,
		q.UserID, q.Plan, q.VideoLimit, q.VideosUsed, start)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"time"
)

// Analytics is the admin dashboard summary.
type Analytics struct {
	TotalUsers          int64            `json:"total_users"`
	NewUsers30d         int64            `json:"new_users_30d"`
	TotalVideos         int64            `json:"total_videos"`
	Videos30d           int64            `json:"videos_30d"`
	VideosByStatus      map[string]int64 `json:"videos_by_status"`
	ActiveSubscriptions map[string]int64 `json:"active_subscriptions"`
	Renders24h          int64            `json:"renders_24h"`
	RendersFailed24h    int64            `json:"renders_failed_24h"`
	AvgRenderMs         int64            `json:"avg_render_ms"`
}

// AdminRepo runs the aggregate queries behind the admin console.
type AdminRepo struct{ db *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{db: db} }

// Analytics computes the dashboard summary relative to now.
func (r *AdminRepo) Analytics(ctx context.Context, now time.Time) (Analytics, error) {
	a := Analytics{VideosByStatus: map[string]int64{}, ActiveSubscriptions: map[string]int64{}}
	monthAgo := now.UTC().AddDate(0, 0, -30)
	dayAgo := now.UTC().Add(-24 * time.Hour)

	counts := []struct {
		dst  *int64
		q    string
		args []any
	}{
		{&a.TotalUsers, "SELECT COUNT(*) FROM users", nil},
		{&a.NewUsers30d, "SELECT COUNT(*) FROM users WHERE created_at >= ?", []any{monthAgo}},
		{&a.TotalVideos, "SELECT COUNT(*) FROM video_projects", nil},
		{&a.Videos30d, "SELECT COUNT(*) FROM video_projects WHERE created_at >= ?", []any{monthAgo}},
		{&a.Renders24h, "SELECT COUNT(*) FROM render_logs WHERE created_at >= ?", []any{dayAgo}},
		{&a.RendersFailed24h, "SELECT COUNT(*) FROM render_logs WHERE status = 'failed' AND updated_at >= ?", []any{dayAgo}},
		{&a.AvgRenderMs, "SELECT COALESCE(CAST(AVG(duration_ms) AS SIGNED), 0) FROM render_logs WHERE status = 'done'", nil},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.q, c.args...).Scan(c.dst); err != nil {
			return a, err
		}
	}
	if err := r.groupCount(ctx, a.VideosByStatus,
		"SELECT status, COUNT(*) FROM video_projects GROUP BY status"); err != nil {
		return a, err
	}
	if err := r.groupCount(ctx, a.ActiveSubscriptions,
		`SELECT plan, COUNT(*) FROM subscriptions
		 WHERE status IN ('active', 'trialing') AND (current_period_end IS NULL OR current_period_end > ?)
		 GROUP BY plan`, now.UTC()); err != nil {
		return a, err
	}
	return a, nil
}

func (r *AdminRepo) groupCount(ctx context.Context, dst map[string]int64, q string, args ...any) error {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			k string
			n int64
		)
		if err := rows.Scan(&k, &n); err != nil {
			return err
		}
		dst[k] = n
	}
	return rows.Err()
}

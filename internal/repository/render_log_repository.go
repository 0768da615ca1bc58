package repository

import (
	"context"
	"database/sql"

	"github.com/smartvid/smartvid/internal/model"
)

// RenderLogRepo provides access to `render_logs`, one row per render job.
type RenderLogRepo struct{ db *sql.DB }

func NewRenderLogRepo(db *sql.DB) *RenderLogRepo { return &RenderLogRepo{db: db} }

// Record creates or updates the log row of a render job.
func (r *RenderLogRepo) Record(ctx context.Context, l model.RenderLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO render_logs (video_id, render_id, status, duration_ms, error_message)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''))
		 ON DUPLICATE KEY UPDATE status = VALUES(status), duration_ms = VALUES(duration_ms),
			error_message = VALUES(error_message), updated_at = CURRENT_TIMESTAMP`,
		l.VideoID, l.RenderID, l.Status, l.DurationMs, l.ErrorMessage)
	return err
}

// List returns recent render logs, optionally filtered by status.
func (r *RenderLogRepo) List(ctx context.Context, status string, p, size int) ([]model.RenderLog, int64, error) {
	limit, offset := page(p, size)
	where := "1=1"
	args := []any{}
	if status != "" {
		where = "status = ?"
		args = append(args, status)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM render_logs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, video_id, render_id, status, duration_ms, COALESCE(error_message, ''), created_at, updated_at
		 FROM render_logs WHERE `+where+` ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.RenderLog, 0, limit)
	for rows.Next() {
		var l model.RenderLog
		if err := rows.Scan(&l.ID, &l.VideoID, &l.RenderID, &l.Status, &l.DurationMs, &l.ErrorMessage,
			&l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/smartvid/smartvid/internal/model"
)

// VideoRepo provides access to `video_projects`.  Every user-facing query
// is scoped by user_id so one user never sees another's projects.
type VideoRepo struct{ db *sql.DB }

func NewVideoRepo(db *sql.DB) *VideoRepo { return &VideoRepo{db: db} }

const videoColumns = `id, user_id, template_id, title, script, voice_id, status, render_id, video_url,
	thumbnail_url, audio_url, duration_seconds, scenes, COALESCE(error_message, ''), created_at, updated_at`

func scanVideo(s rowScanner) (model.VideoProject, error) {
	var (
		v        model.VideoProject
		template sql.NullInt64
		scenes   []byte
	)
	err := s.Scan(&v.ID, &v.UserID, &template, &v.Title, &v.Script, &v.VoiceID, &v.Status, &v.RenderID,
		&v.VideoURL, &v.ThumbnailURL, &v.AudioURL, &v.DurationSeconds, &scenes, &v.ErrorMessage,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return v, err
	}
	v.TemplateID = nullUint64Ptr(template)
	if len(scenes) > 0 {
		v.Scenes = json.RawMessage(scenes)
	}
	return v, nil
}

// QuotaGate bounds how many projects a user may hold in the current period.
type QuotaGate struct {
	Plan  string
	Limit int
	Since time.Time
}

// Create inserts a pending project and fills ID and timestamps.  The
// user's user_quotas row is locked for the count and the insert, so
// concurrent creates for one user cannot both pass the limit; it fails
// with ErrQuotaExceeded when q.Limit projects already exist since q.Since.
func (r *VideoRepo) Create(ctx context.Context, v *model.VideoProject, q QuotaGate) error {
	if v.Status == "" {
		v.Status = model.VideoPending
	}
	since := q.Since.UTC()
	if since.Before(epoch) {
		since = epoch
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_quotas (user_id, plan, video_limit, videos_used, period_start)
		 VALUES (?, ?, ?, 0, ?)
		 ON DUPLICATE KEY UPDATE user_id = user_id`,
		v.UserID, q.Plan, q.Limit, since); err != nil {
		return err
	}
	var locked uint64
	if err := tx.QueryRowContext(ctx,
		"SELECT user_id FROM user_quotas WHERE user_id = ? FOR UPDATE", v.UserID).Scan(&locked); err != nil {
		return err
	}
	var used int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM video_projects WHERE user_id = ? AND created_at >= ?",
		v.UserID, since).Scan(&used); err != nil {
		return err
	}
	if used >= q.Limit {
		return ErrQuotaExceeded
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO video_projects (user_id, template_id, title, script, voice_id, status, scenes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.UserID, uint64Arg(v.TemplateID), v.Title, v.Script, v.VoiceID, v.Status, jsonArg(v.Scenes))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_quotas SET plan = ?, video_limit = ?, videos_used = ?, period_start = ?,
			updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		q.Plan, q.Limit, used+1, since, v.UserID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*v = created
	return nil
}

// GetByID loads a project regardless of owner (worker and webhooks).
func (r *VideoRepo) GetByID(ctx context.Context, id uint64) (model.VideoProject, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM video_projects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// GetForUser loads a project owned by userID.
func (r *VideoRepo) GetForUser(ctx context.Context, id, userID uint64) (model.VideoProject, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM video_projects WHERE id = ? AND user_id = ?", id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// GetByRenderID resolves the project a render job belongs to.
func (r *VideoRepo) GetByRenderID(ctx context.Context, renderID string) (model.VideoProject, error) {
	v, err := scanVideo(r.db.QueryRowContext(ctx,
		"SELECT "+videoColumns+" FROM video_projects WHERE render_id = ? LIMIT 1", renderID))
	if errors.Is(err, sql.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, err
}

// VideoFilter narrows ListByUser.
type VideoFilter struct {
	Status   string
	Page     int
	PageSize int
}

// ListByUser returns a page of the user's projects, newest first.
func (r *VideoRepo) ListByUser(ctx context.Context, userID uint64, f VideoFilter) ([]model.VideoProject, int64, error) {
	limit, offset := page(f.Page, f.PageSize)
	where := "user_id = ?"
	args := []any{userID}
	if s := strings.TrimSpace(f.Status); s != "" {
		where += " AND status = ?"
		args = append(args, s)
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM video_projects WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+videoColumns+" FROM video_projects WHERE "+where+" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.VideoProject, 0, limit)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// CountSince counts the user's projects created at or after since.  A zero
// since counts every project the user ever created.
func (r *VideoRepo) CountSince(ctx context.Context, userID uint64, since time.Time) (int, error) {
	if since.Before(epoch) {
		since = epoch
	}
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM video_projects WHERE user_id = ? AND created_at >= ?",
		userID, since.UTC()).Scan(&n)
	return n, err
}

// UpdateContent changes the editable fields of a project owned by userID.
func (r *VideoRepo) UpdateContent(ctx context.Context, v model.VideoProject) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE video_projects SET title = ?, script = ?, voice_id = ?, template_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND user_id = ?`,
		v.Title, v.Script, v.VoiceID, uint64Arg(v.TemplateID), v.ID, v.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetScenes stores a scene breakdown on a project owned by userID.
func (r *VideoRepo) SetScenes(ctx context.Context, id, userID uint64, scenes json.RawMessage) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE video_projects SET scenes = ? WHERE id = ? AND user_id = ?", jsonArg(scenes), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAudioURL records generated narration on a project owned by userID.
func (r *VideoRepo) SetAudioURL(ctx context.Context, id, userID uint64, url string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE video_projects SET audio_url = ? WHERE id = ? AND user_id = ?", url, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// StatusUpdate carries the fields written alongside a status change.
// Empty strings and zero durations leave the stored value unchanged.
type StatusUpdate struct {
	Status          string
	RenderID        string
	VideoURL        string
	ThumbnailURL    string
	DurationSeconds int
	ErrorMessage    string
}

// UpdateStatus moves a project to u.Status.  The UPDATE only matches rows
// whose current status may legally transition, so concurrent pollers
// cannot move a completed project backwards; ErrConflict reports a
// rejected transition.
func (r *VideoRepo) UpdateStatus(ctx context.Context, id uint64, u StatusUpdate) error {
	from := model.PreviousStatuses(u.Status)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	args := []any{u.Status, u.RenderID, u.VideoURL, u.ThumbnailURL, u.DurationSeconds, u.DurationSeconds, u.ErrorMessage, id}
	for _, s := range from {
		args = append(args, s)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE video_projects SET
			status = ?,
			render_id = COALESCE(NULLIF(?, ''), render_id),
			video_url = COALESCE(NULLIF(?, ''), video_url),
			thumbnail_url = COALESCE(NULLIF(?, ''), thumbnail_url),
			duration_seconds = IF(? > 0, ?, duration_seconds),
			error_message = NULLIF(?, ''),
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// Delete removes a project owned by userID.  Render logs cascade.
func (r *VideoRepo) Delete(ctx context.Context, id, userID uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM video_projects WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

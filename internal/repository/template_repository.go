package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/smartvid/smartvid/internal/model"
)

// TemplateRepo provides access to `templates`.
type TemplateRepo struct{ db *sql.DB }

func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = "id, name, description, category, thumbnail_url, config, is_premium, is_active, created_at, updated_at"

func scanTemplate(s rowScanner) (model.Template, error) {
	var (
		t   model.Template
		cfg []byte
	)
	if err := s.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.ThumbnailURL, &cfg,
		&t.IsPremium, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	if len(cfg) > 0 {
		t.Config = json.RawMessage(cfg)
	}
	return t, nil
}

// List returns templates ordered by name.  Inactive ones are included only
// when includeInactive is set (admin console).
func (r *TemplateRepo) List(ctx context.Context, category string, includeInactive bool) ([]model.Template, error) {
	where := []string{}
	args := []any{}
	if !includeInactive {
		where = append(where, "is_active = 1")
	}
	if c := strings.TrimSpace(category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	q := "SELECT " + templateColumns + " FROM templates"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY name"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByID fetches one template.
func (r *TemplateRepo) GetByID(ctx context.Context, id uint64) (model.Template, error) {
	t, err := scanTemplate(r.db.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM templates WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// Create inserts a template and fills its ID.
func (r *TemplateRepo) Create(ctx context.Context, t *model.Template) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO templates (name, description, category, thumbnail_url, config, is_premium, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Description, t.Category, t.ThumbnailURL, jsonArg(t.Config), t.IsPremium, t.IsActive)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = created
	return nil
}

// Update overwrites a template.
func (r *TemplateRepo) Update(ctx context.Context, t model.Template) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, description = ?, category = ?, thumbnail_url = ?, config = ?,
		 is_premium = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		t.Name, t.Description, t.Category, t.ThumbnailURL, jsonArg(t.Config), t.IsPremium, t.IsActive, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a template; projects using it keep a NULL template_id.
func (r *TemplateRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

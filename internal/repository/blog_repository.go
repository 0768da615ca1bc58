package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/smartvid/smartvid/internal/database"
	"github.com/smartvid/smartvid/internal/model"
)

// BlogRepo provides access to `blog_posts`.
type BlogRepo struct{ db *sql.DB }

func NewBlogRepo(db *sql.DB) *BlogRepo { return &BlogRepo{db: db} }

const blogColumns = "id, slug, title, excerpt, content, author, cover_url, published, published_at, created_at, updated_at"

func scanBlogPost(s rowScanner) (model.BlogPost, error) {
	var (
		p  model.BlogPost
		at sql.NullTime
	)
	err := s.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.Content, &p.Author, &p.CoverURL,
		&p.Published, &at, &p.CreatedAt, &p.UpdatedAt)
	p.PublishedAt = nullTimePtr(at)
	return p, err
}

func (r *BlogRepo) list(ctx context.Context, q string, args ...any) ([]model.BlogPost, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.BlogPost{}
	for rows.Next() {
		p, err := scanBlogPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPublished returns published posts, newest first, without content.
func (r *BlogRepo) ListPublished(ctx context.Context, p, size int) ([]model.BlogPost, error) {
	limit, offset := page(p, size)
	posts, err := r.list(ctx, "SELECT "+blogColumns+
		" FROM blog_posts WHERE published = 1 ORDER BY published_at DESC, id DESC LIMIT ? OFFSET ?", limit, offset)
	for i := range posts {
		posts[i].Content = ""
	}
	return posts, err
}

// ListAll returns every post for the admin console.
func (r *BlogRepo) ListAll(ctx context.Context) ([]model.BlogPost, error) {
	return r.list(ctx, "SELECT "+blogColumns+" FROM blog_posts ORDER BY updated_at DESC, id DESC")
}

// SitemapEntry is a published slug and its last modification time.
type SitemapEntry struct {
	Slug      string
	UpdatedAt time.Time
}

// PublishedSlugs returns every published post for the sitemap.
func (r *BlogRepo) PublishedSlugs(ctx context.Context) ([]SitemapEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT slug, updated_at FROM blog_posts WHERE published = 1 ORDER BY published_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []SitemapEntry{}
	for rows.Next() {
		var e SitemapEntry
		if err := rows.Scan(&e.Slug, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetBySlug returns a published post.
func (r *BlogRepo) GetBySlug(ctx context.Context, slug string) (model.BlogPost, error) {
	p, err := scanBlogPost(r.db.QueryRowContext(ctx,
		"SELECT "+blogColumns+" FROM blog_posts WHERE slug = ? AND published = 1", slug))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// GetByID returns a post regardless of its published flag.
func (r *BlogRepo) GetByID(ctx context.Context, id uint64) (model.BlogPost, error) {
	p, err := scanBlogPost(r.db.QueryRowContext(ctx, "SELECT "+blogColumns+" FROM blog_posts WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// Create inserts a post.  published_at is stamped the first time a post
// is published.
func (r *BlogRepo) Create(ctx context.Context, p *model.BlogPost) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO blog_posts (slug, title, excerpt, content, author, cover_url, published, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, IF(?, UTC_TIMESTAMP(), NULL))`,
		p.Slug, p.Title, p.Excerpt, p.Content, p.Author, p.CoverURL, p.Published, p.Published)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return ErrSlugExists
		}
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
	*p = created
	return nil
}

// Update overwrites a post.
func (r *BlogRepo) Update(ctx context.Context, p model.BlogPost) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE blog_posts SET slug = ?, title = ?, excerpt = ?, content = ?, author = ?, cover_url = ?,
			published = ?, published_at = IF(?, COALESCE(published_at, UTC_TIMESTAMP()), NULL),
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Slug, p.Title, p.Excerpt, p.Content, p.Author, p.CoverURL, p.Published, p.Published, p.ID)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return ErrSlugExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a post.
func (r *BlogRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM blog_posts WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/smartvid/smartvid/internal/database"
	"github.com/smartvid/smartvid/internal/model"
	"github.com/smartvid/smartvid/internal/utils"
)

// UserRepo persists users and their profiles.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// DB exposes the pool for callers that need a transaction.
func (r *UserRepo) DB() *sql.DB { return r.db }

const userColumns = "id,email,password_hash,role,is_active,created_at,updated_at"

func scanUser(s rowScanner) (model.User, error) {
	var u model.User
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a user together with an empty profile and a free quota
// row, and returns the new ID.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, role)
	if err != nil {
		if database.IsDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO profiles (user_id) VALUES (?)", id); err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_quotas (user_id, plan, video_limit, videos_used) VALUES (?, 'free', 2, 0)", id); err != nil {
		return 0, fmt.Errorf("create quota: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// List returns users ordered by newest first, with the total count.
func (r *UserRepo) List(ctx context.Context, search string, p, size int) ([]model.User, int64, error) {
	limit, offset := page(p, size)
	where := "1=1"
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		where = "LOWER(email) LIKE ?"
		args = append(args, "%"+strings.ToLower(s)+"%")
	}
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// SetRole changes a user's role.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE users SET role=? WHERE id=?", role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetProfile returns the profile joined with the user's email.
func (r *UserRepo) GetProfile(ctx context.Context, userID uint64) (model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRowContext(ctx,
		`SELECT p.user_id, u.email, p.full_name, p.avatar_url, p.company, p.stripe_customer_id, p.created_at, p.updated_at
		 FROM profiles p JOIN users u ON u.id = p.user_id WHERE p.user_id = ?`, userID).
		Scan(&p.UserID, &p.Email, &p.FullName, &p.AvatarURL, &p.Company, &p.StripeCustomerID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// UpdateProfile overwrites the editable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, p model.Profile) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET full_name=?, avatar_url=?, company=?, updated_at=CURRENT_TIMESTAMP WHERE user_id=?",
		p.FullName, p.AvatarURL, p.Company, p.UserID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStripeCustomer links a Stripe customer id to the profile.
func (r *UserRepo) SetStripeCustomer(ctx context.Context, userID uint64, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET stripe_customer_id=? WHERE user_id=?", customerID, userID)
	return err
}

// FindByStripeCustomer resolves the user owning a Stripe customer id.
func (r *UserRepo) FindByStripeCustomer(ctx context.Context, customerID string) (uint64, error) {
	var id uint64
	err := r.db.QueryRowContext(ctx,
		"SELECT user_id FROM profiles WHERE stripe_customer_id=? LIMIT 1", customerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

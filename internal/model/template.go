package model

import (
	"encoding/json"
	"time"
)

// Template is a reusable video style offered in the dashboard.
type Template struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	ThumbnailURL string          `json:"thumbnail_url"`
	Config       json.RawMessage `json:"config,omitempty"`
	IsPremium    bool            `json:"is_premium"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

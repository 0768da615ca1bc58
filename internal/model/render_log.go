package model

import "time"

// RenderLog tracks one render job: its provider id, last status and timing.
type RenderLog struct {
	ID           uint64    `json:"id"`
	VideoID      uint64    `json:"video_id"`
	RenderID     string    `json:"render_id"`
	Status       string    `json:"status"`
	DurationMs   int64     `json:"duration_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

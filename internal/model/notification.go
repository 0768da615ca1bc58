package model

import "time"

// Notification types.
const (
	NotifyVideoCompleted = "video_completed"
	NotifyVideoFailed    = "video_failed"
	NotifySubscription   = "subscription"
	NotifyPaymentFailed  = "payment_failed"
	NotifySystem         = "system"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

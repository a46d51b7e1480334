package models

import (
	"encoding/json"
	"time"
)

// Notification represents a user-facing notification (announcement posted,
// assignment due, etc.). Extra carries producer-defined context and is
// passed through unmodified.
type Notification struct {
	ID        string          `json:"id"` // ULID
	UserID    string          `json:"uid"`
	Title     string          `json:"title"`
	Message   string          `json:"message"` // preview, truncated by the producer
	Read      bool            `json:"read"`
	ReadAt    *time.Time      `json:"readAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Extra     json.RawMessage `json:"extra,omitempty"`
}

package models

import "time"

// Author is the denormalized author snapshot taken at write time.
// The user profile service owns the canonical record; messages keep
// whatever the author looked like when the message was sent.
type Author struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl,omitempty"`
}

// ChatMessage represents one classroom chat message.
// Messages are immutable after creation; the only permitted mutation
// is deletion, and only by the matching author.
type ChatMessage struct {
	ID        string    `json:"id"` // ULID
	RoomID    string    `json:"classId"`
	AuthorID  string    `json:"authorId"`
	Author    Author    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

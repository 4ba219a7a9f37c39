package history

import "time"

// Message is a single conversational message persisted per session.
type Message struct {
	ID        uint64    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

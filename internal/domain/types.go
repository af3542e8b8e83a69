package domain

import "time"

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation points at the source passage an answer was grounded on.
type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ChatTurn is a single entry in a session's conversation history.
// Turns are immutable once appended.
type ChatTurn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Confidence *float64   `json:"confidence,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

package assessment

import "time"

// Roles attached to conversation log entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in the conversation log. Entries are immutable once
// appended and insertion order is the only temporal index.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

package store

import (
	"encoding/json"
	"time"
)

// User represents a person authenticated via the identity provider.
type User struct {
	ID           int64
	OAuthSubject string
	PrimaryEmail string
	CreatedAt    time.Time
	LastLoginAt  time.Time
}

// Session is a server-side web session referenced by the session cookie.
type Session struct {
	ID         string
	UserID     int64
	UserAgent  *string
	IPAddress  *string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastSeenAt time.Time
}

// Message is one entry of the append-only public chat feed.
type Message struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	AuthorEmail string    `json:"author_email"`
	Content     string    `json:"content"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskStatus is the lifecycle state of an assistant task record.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Task records one assistant tool invocation and its outcome. Parameters and
// Result are stored as JSONB; their shape depends on TaskType.
type Task struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id"`
	TaskType     string          `json:"task_type"`
	InvocationID string          `json:"invocation_id,omitempty"`
	Parameters   json.RawMessage `json:"parameters"`
	Result       json.RawMessage `json:"result"`
	Status       TaskStatus      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

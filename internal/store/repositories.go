package store

import "context"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UpsertOAuthUser(ctx context.Context, subject, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
}

// SessionRepository stores web sessions.
type SessionRepository interface {
	Create(ctx context.Context, session Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) ([]string, error)
}

// MessageRepository is the append-only chat message store.
type MessageRepository interface {
	Create(ctx context.Context, msg Message) (*Message, error)
	GetByID(ctx context.Context, id int64) (*Message, error)
	ListRecent(ctx context.Context, limit int) ([]Message, error)
}

// TaskRepository stores assistant task records. Create is idempotent per
// (user, invocation): a second call returns the first record unchanged.
type TaskRepository interface {
	Create(ctx context.Context, task Task) (*Task, error)
	GetByID(ctx context.Context, id string) (*Task, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Task, error)
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jw6ventures/powerchat/internal/store"
)

// Channel is the NOTIFY channel written by the messages insert trigger.
const Channel = "chat_messages"

// NotificationConn is the part of *pgx.Conn the listener needs. The
// connection must be dedicated to the listener for its lifetime.
type NotificationConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// MessageSource loads the full row for a notified id.
type MessageSource interface {
	GetByID(ctx context.Context, id int64) (*store.Message, error)
}

// Listener turns Postgres notifications into hub publications.
type Listener struct {
	conn     NotificationConn
	messages MessageSource
	hub      *Hub
}

func NewListener(conn NotificationConn, messages MessageSource, hub *Hub) *Listener {
	return &Listener{conn: conn, messages: messages, hub: hub}
}

type notifyPayload struct {
	ID int64 `json:"id"`
}

// Run listens until ctx is cancelled, returning nil in that case. Any other
// connection error ends the loop; there is no reconnect.
func (l *Listener) Run(ctx context.Context) error {
	if _, err := l.conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return fmt.Errorf("listen %s: %w", Channel, err)
	}
	log.Printf("[INFO] realtime listener subscribed to %s", Channel)

	for {
		n, err := l.conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.handle(ctx, n)
	}
}

func (l *Listener) handle(ctx context.Context, n *pgconn.Notification) {
	if n.Channel != Channel {
		return
	}
	var payload notifyPayload
	if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil || payload.ID == 0 {
		log.Printf("[WARN] realtime: ignoring malformed payload %q", n.Payload)
		return
	}
	msg, err := l.messages.GetByID(ctx, payload.ID)
	if err != nil {
		log.Printf("[WARN] realtime: load message %d: %v", payload.ID, err)
		return
	}
	l.hub.Publish(*msg)
}

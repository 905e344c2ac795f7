// Package chat is the public chat feed: an append-only message store with a
// realtime view of inserts.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jw6ventures/powerchat/internal/metrics"
	"github.com/jw6ventures/powerchat/internal/realtime"
	"github.com/jw6ventures/powerchat/internal/store"
)

var (
	ErrEmptyMessage   = errors.New("message content is empty")
	ErrMessageTooLong = errors.New("message content is too long")
)

// DefaultImageContent accompanies image messages sent without a caption.
const DefaultImageContent = "Sent an image"

// MaxContentRunes caps a single message.
const MaxContentRunes = 4000

// Service persists messages and exposes the realtime feed. With
// publishDirect set, Send* push new rows to the hub themselves; otherwise the
// database listener does, so each insert is delivered exactly once.
type Service struct {
	messages      store.MessageRepository
	hub           *realtime.Hub
	publishDirect bool
}

func NewService(messages store.MessageRepository, hub *realtime.Hub, publishDirect bool) *Service {
	return &Service{messages: messages, hub: hub, publishDirect: publishDirect}
}

// List returns up to limit of the newest messages, oldest first.
func (s *Service) List(ctx context.Context, limit int) ([]store.Message, error) {
	msgs, err := s.messages.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat: %w", err)
	}
	return msgs, nil
}

func (s *Service) Send(ctx context.Context, userID int64, content string) (*store.Message, error) {
	return s.post(ctx, "text", store.Message{UserID: userID, Content: content})
}

// SendImage posts an image message, defaulting the caption.
func (s *Service) SendImage(ctx context.Context, userID int64, imageURL, content string) (*store.Message, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, errors.New("image url is required")
	}
	if strings.TrimSpace(content) == "" {
		content = DefaultImageContent
	}
	return s.post(ctx, "image", store.Message{UserID: userID, Content: content, ImageURL: &imageURL})
}

// Share posts a system composed message, such as a meeting summary.
func (s *Service) Share(ctx context.Context, userID int64, content string) (*store.Message, error) {
	return s.post(ctx, "share", store.Message{UserID: userID, Content: content})
}

// Subscribe opens a realtime feed that closes when ctx is done.
func (s *Service) Subscribe(ctx context.Context) *realtime.Subscription {
	sub := s.hub.Subscribe()
	go func() {
		<-ctx.Done()
		sub.Close()
	}()
	return sub
}

func (s *Service) post(ctx context.Context, kind string, msg store.Message) (*store.Message, error) {
	msg.Content = strings.TrimSpace(msg.Content)
	if msg.Content == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg.Content) > MaxContentRunes {
		return nil, ErrMessageTooLong
	}
	created, err := s.messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send %s message: %w", kind, err)
	}
	metrics.IncChatMessage(kind)
	if s.publishDirect {
		s.hub.Publish(*created)
	}
	return created, nil
}

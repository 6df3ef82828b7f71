package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// Message is one turn of dialogue within a session. Messages are append-only
// and ordered by timestamp.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	SessionID   uuid.UUID   `json:"session_id"`
	Role        MessageRole `json:"role"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
	MessageType MessageType `json:"message_type"`
}

type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	// ListBySession returns messages in timestamp order. limit <= 0 means no limit.
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*Message, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

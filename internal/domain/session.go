package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// Terminal reports whether the status is final. A terminal session accepts
// no further messages or task results.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed
}

// Session is one end-to-end conversation run.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	UserID    *string       `json:"user_id,omitempty"`
	Title     string        `json:"title"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)
	// UpdateStatus transitions a session to a new status. Transitions out of a
	// terminal status are rejected with ErrSessionClosed.
	UpdateStatus(ctx context.Context, id uuid.UUID, status SessionStatus) error
	// Touch advances updated_at without changing status.
	Touch(ctx context.Context, id uuid.UUID) error
	ListRecent(ctx context.Context, limit int) ([]*Session, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Session, error)
	// Search matches sessions whose title or message content contains the query.
	Search(ctx context.Context, query string, limit int) ([]*Session, error)
}

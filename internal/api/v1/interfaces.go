package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Sessions() domain.SessionRepository
	Messages() domain.MessageRepository
	TaskResults() domain.TaskResultRepository
}

// Orchestrator abstracts the analysis engine for handler testing.
// *engine.Coordinator satisfies this interface.
type Orchestrator interface {
	HandleMessage(ctx context.Context, sessionID *uuid.UUID, userID *string, text string) (*engine.TurnResult, error)
}

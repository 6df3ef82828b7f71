package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskResult is the durable projection of a Step. At most one row exists per
// (session_id, step_id); writes are upserts on that pair, so re-entrant
// execution of the same step overwrites rather than duplicates.
type TaskResult struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       uuid.UUID  `json:"session_id"`
	StepID          string     `json:"step_id"`
	StepDescription string     `json:"step_description"`
	TargetNode      string     `json:"target_node"`
	Result          string     `json:"result,omitempty"`
	Status          StepStatus `json:"status"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

type TaskResultRepository interface {
	Upsert(ctx context.Context, tr *TaskResult) error
	// ListBySession returns task results ordered by created_at.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*TaskResult, error)
	GetByStep(ctx context.Context, sessionID uuid.UUID, stepID string) (*TaskResult, error)
}

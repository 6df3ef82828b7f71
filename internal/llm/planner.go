package llm

import (
	"context"
	"errors"

	"github.com/gosuda/stockai/internal/domain"
)

// ErrMalformedPlan is returned when the collaborator's response cannot be
// parsed into a valid step list. The engine treats it as a planner failure.
var ErrMalformedPlan = errors.New("llm: malformed plan response")

// Capability describes one registered capability node, sent to the
// collaborator so it can target plan steps.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PlannedStep is one (description, target_node) pair proposed by the
// collaborator.
type PlannedStep struct {
	Description string `json:"description"`
	TargetNode  string `json:"target_node"`
}

// Decision is the outcome of classifying an inbound message: either a direct
// reply, or a request for a full plan.
type Decision struct {
	Reply     string
	NeedsPlan bool
}

// Planner is the language-model collaborator contract. The engine treats it
// as an opaque function: conversation plus capability names in, either a
// direct answer or an ordered step list out.
type Planner interface {
	Classify(ctx context.Context, history []*domain.Message, text string) (Decision, error)
	Plan(ctx context.Context, history []*domain.Message, text string, caps []Capability) ([]PlannedStep, error)
	// Revise proposes a replacement for the remaining pending steps after a
	// step failed. Returning an empty slice keeps the remaining steps as-is.
	Revise(ctx context.Context, failed domain.Step, remaining []PlannedStep, caps []Capability) ([]PlannedStep, error)
}

package engine

import (
	"context"

	"github.com/gosuda/stockai/internal/domain"
)

// Outcome is what a capability node returns for one step. A nil Err means the
// step completed; a non-nil Err marks the step failed with a human-readable
// message. Facts are optional shared-state fragments merged into the
// session's AgentState for later steps.
type Outcome struct {
	Result string
	Facts  map[string]string
	Err    error
}

// Node is the contract every business capability must satisfy.
//
// A node must not panic across this boundary (the executor recovers anyway),
// must honor the context deadline, and must not touch the session store:
// persistence is the executor's single write path. A node may perform
// arbitrary I/O against external collaborators.
type Node interface {
	Name() string
	Description() string
	Execute(ctx context.Context, st *AgentState, step domain.Step) Outcome
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stockai/internal/domain"
)

// Executor wraps one capability node invocation with failure isolation,
// timing, and persistence. It owns the single write path to task_results:
// exactly one terminal upsert happens per execution, whatever the outcome.
// A step's failure is returned as data, never as an error: one failing step
// degrades the eventual report but never aborts the run.
type Executor struct {
	registry *Registry
	tasks    domain.TaskResultRepository
	timeout  time.Duration
}

func NewExecutor(registry *Registry, tasks domain.TaskResultRepository, timeout time.Duration) *Executor {
	return &Executor{
		registry: registry,
		tasks:    tasks,
		timeout:  timeout,
	}
}

// ExecuteStep runs the plan step at idx and returns it in a terminal status.
// The step in st.Plan is updated in place and node facts are merged into the
// shared state.
func (e *Executor) ExecuteStep(ctx context.Context, st *AgentState, idx int) domain.Step {
	step := st.Plan[idx]
	started := time.Now()

	step.Status = domain.StepStatusRunning
	st.Plan[idx] = step
	e.persist(ctx, st.SessionID, step, started, nil)

	node, err := e.registry.Resolve(step.TargetNode)
	if err != nil {
		step.Status = domain.StepStatusFailed
		step.Error = err.Error()
	} else {
		outcome := e.invoke(ctx, node, st, step)
		if outcome.Err != nil {
			step.Status = domain.StepStatusFailed
			step.Error = outcome.Err.Error()
		} else {
			step.Status = domain.StepStatusCompleted
			step.Result = outcome.Result
			st.MergeFacts(outcome.Facts)
		}
	}

	completed := time.Now()
	st.Plan[idx] = step
	e.persist(ctx, st.SessionID, step, started, &completed)

	log.Info().
		Str("session_id", st.SessionID.String()).
		Str("step_id", step.StepID).
		Str("target_node", step.TargetNode).
		Str("status", string(step.Status)).
		Dur("elapsed", completed.Sub(started)).
		Msg("engine.Executor.ExecuteStep: step finished")

	return step
}

// invoke runs the node under a bounded deadline with panic isolation. A node
// that overruns the deadline is abandoned; its goroutine keeps the context
// cancellation as its only stop signal. The node receives a state snapshot,
// never the shared instance: an abandoned goroutine may still be reading its
// state while the coordinator mutates the live plan and facts.
func (e *Executor) invoke(ctx context.Context, node Node, st *AgentState, step domain.Step) Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	snap := st.Snapshot()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{Err: fmt.Errorf("node %s panicked: %v", node.Name(), r)}
			}
		}()
		done <- node.Execute(ctx, snap, step)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
		return Outcome{Err: fmt.Errorf("node %s: %w", node.Name(), ctx.Err())}
	}
}

// persist upserts the task-result projection of a step. Persistence failures
// are logged and swallowed: a storage fault must never mask or replace the
// step outcome, and must never crash the run.
func (e *Executor) persist(ctx context.Context, sessionID uuid.UUID, step domain.Step, created time.Time, completed *time.Time) {
	tr := &domain.TaskResult{
		ID:              uuid.New(),
		SessionID:       sessionID,
		StepID:          step.StepID,
		StepDescription: step.Description,
		TargetNode:      step.TargetNode,
		Result:          step.Result,
		Status:          step.Status,
		ErrorMessage:    step.Error,
		CreatedAt:       created,
	}
	if step.Status.Terminal() {
		tr.CompletedAt = completed
	}

	// The terminal write must land even when the run deadline already
	// expired, so use a detached context in that case.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	if err := e.tasks.Upsert(ctx, tr); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("step_id", step.StepID).
			Msg("engine.Executor.persist: task result write failed")
	}
}

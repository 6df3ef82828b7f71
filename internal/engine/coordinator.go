package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/llm"
)

// ErrSessionBusy is returned when a turn arrives for a session that is
// already executing one. Execution is strictly sequential per session.
var ErrSessionBusy = errors.New("engine: session busy")

// ErrPlannerFailed marks the fatal, non-recoverable condition where the
// planner cannot produce or advance a plan. It is distinct from an
// individual step's failure, which never ends the run.
var ErrPlannerFailed = errors.New("engine: planner failed")

// ErrReplanLoopDetected marks a run terminated by the step-count or
// replan-count cap. Treated identically to a planner failure, distinguished
// only for diagnostics.
var ErrReplanLoopDetected = errors.New("engine: replan loop detected")

// EventPublisher abstracts the pub/sub publish operation.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// routeOutcome is the closed set of planner routing decisions. Per turn of
// the loop the planner either dispatches one step, hands off to the
// summarizer, or terminates with a fatal planner error.
type routeOutcome int

const (
	routeDispatch routeOutcome = iota
	routeSummarize
	routeTerminate
)

// Limits bounds a single session run.
type Limits struct {
	MaxSteps   int
	MaxReplans int
	RunTimeout time.Duration
}

// TurnResult is the user-visible outcome of one inbound message.
type TurnResult struct {
	SessionID uuid.UUID    `json:"session_id"`
	Reply     string       `json:"reply"`
	Direct    bool         `json:"direct"`
	Stats     *ReportStats `json:"stats,omitempty"`
}

// Coordinator drives the session state machine:
//
//	NEW -> CREATED -> PLANNING -> {DISPATCHING <-> PLANNING} -> SUMMARIZING -> {COMPLETED | FAILED}
//
// Within one session execution is single-threaded and sequential; across
// sessions runs are parallel and share nothing beyond the store.
type Coordinator struct {
	planner    llm.Planner
	registry   *Registry
	executor   *Executor
	summarizer *Summarizer
	sessions   domain.SessionRepository
	messages   domain.MessageRepository
	tasks      domain.TaskResultRepository
	events     EventPublisher
	limits     Limits

	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func NewCoordinator(
	planner llm.Planner,
	registry *Registry,
	executor *Executor,
	summarizer *Summarizer,
	sessions domain.SessionRepository,
	messages domain.MessageRepository,
	tasks domain.TaskResultRepository,
	events EventPublisher,
	limits Limits,
) *Coordinator {
	return &Coordinator{
		planner:    planner,
		registry:   registry,
		executor:   executor,
		summarizer: summarizer,
		sessions:   sessions,
		messages:   messages,
		tasks:      tasks,
		events:     events,
		limits:     limits,
		active:     make(map[uuid.UUID]struct{}),
	}
}

// HandleMessage processes one inbound user message: shortcut to a direct
// reply, or create/resume the session and run the plan loop to completion.
// The returned TurnResult always carries a reply; the error return is
// reserved for conditions the caller must handle (unknown session, busy
// session, closed session).
func (c *Coordinator) HandleMessage(ctx context.Context, sessionID *uuid.UUID, userID *string, text string) (*TurnResult, error) {
	session, history, err := c.ensureSession(ctx, sessionID, userID, text)
	if err != nil {
		return nil, fmt.Errorf("engine.Coordinator.HandleMessage: %w", err)
	}

	if err = c.acquire(session.ID); err != nil {
		return nil, fmt.Errorf("engine.Coordinator.HandleMessage: %w", err)
	}
	defer c.release(session.ID)

	c.appendMessage(ctx, session.ID, domain.RoleUser, text)
	c.touchSession(ctx, session.ID)
	c.publishTurnStarted(ctx, session.ID)

	// Trivial-reply shortcut: no plan, answer and close.
	decision, classifyErr := c.planner.Classify(ctx, history, text)
	if classifyErr != nil {
		// Classification trouble is not fatal; fall through to planning.
		log.Warn().Err(classifyErr).
			Str("session_id", session.ID.String()).
			Msg("engine.Coordinator.HandleMessage: classify failed, planning anyway")
		decision = llm.Decision{NeedsPlan: true}
	}

	if !decision.NeedsPlan {
		c.appendMessage(ctx, session.ID, domain.RoleAssistant, decision.Reply)
		if err = c.sessions.UpdateStatus(ctx, session.ID, domain.SessionStatusCompleted); err != nil {
			log.Error().Err(err).
				Str("session_id", session.ID.String()).
				Msg("engine.Coordinator.HandleMessage: direct-reply close failed")
		}
		return &TurnResult{SessionID: session.ID, Reply: decision.Reply, Direct: true}, nil
	}

	return c.run(ctx, session, history, text)
}

// run executes the PLANNING/DISPATCHING loop for one turn.
func (c *Coordinator) run(ctx context.Context, session *domain.Session, history []*domain.Message, text string) (*TurnResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.limits.RunTimeout)
	defer cancel()

	st := NewAgentState(session.ID, text, history)

	planned, err := c.planner.Plan(runCtx, history, text, c.registry.Capabilities())
	if err != nil {
		// PlannerError before any step: explanatory failure message, session failed.
		log.Error().Err(err).
			Str("session_id", session.ID.String()).
			Msg("engine.Coordinator.run: initial planning failed")
		return c.failBeforeExecution(ctx, session.ID, err)
	}

	existing, listErr := c.tasks.ListBySession(runCtx, session.ID)
	if listErr != nil {
		log.Warn().Err(listErr).
			Str("session_id", session.ID.String()).
			Msg("engine.Coordinator.run: task result load failed, starting fresh")
	}

	st.StepSeq = lastStepSeq(existing)
	st.Plan = c.materialize(st, planned)
	st.ApplyTaskResults(existing)

	var (
		executed     int
		incomplete   bool
		stopReason   string
		loopDetected bool
	)

	for {
		route, idx := c.route(runCtx, st, executed, loopDetected)

		switch route {
		case routeDispatch:
			step := c.executor.ExecuteStep(runCtx, st, idx)
			executed++

			if step.Status == domain.StepStatusFailed {
				loopDetected = c.revise(runCtx, st, step)
			}

		case routeSummarize:
			if st.NextPendingIndex() >= 0 {
				incomplete = true
				stopReason = c.stopReason(runCtx, executed, loopDetected)
			}
			report, stats := c.summarizer.Finalize(ctx, st, incomplete, stopReason)
			return &TurnResult{SessionID: session.ID, Reply: report, Stats: &stats}, nil

		case routeTerminate:
			return c.failBeforeExecution(ctx, session.ID, ErrPlannerFailed)
		}
	}
}

// route implements the planner's three-way routing decision. Guards come
// first: run deadline, step cap, and replan cap all force Summary with the
// plan marked incomplete rather than spinning.
func (c *Coordinator) route(runCtx context.Context, st *AgentState, executed int, loopDetected bool) (routeOutcome, int) {
	if runCtx.Err() != nil || executed >= c.limits.MaxSteps || loopDetected {
		return routeSummarize, -1
	}

	idx := st.NextPendingIndex()
	if idx < 0 {
		return routeSummarize, -1
	}

	return routeDispatch, idx
}

func (c *Coordinator) stopReason(runCtx context.Context, executed int, loopDetected bool) string {
	switch {
	case loopDetected:
		return ErrReplanLoopDetected.Error()
	case executed >= c.limits.MaxSteps:
		return fmt.Sprintf("step cap of %d reached", c.limits.MaxSteps)
	case runCtx.Err() != nil:
		return "run deadline exceeded"
	default:
		return ""
	}
}

// revise applies the failed-step policy: skip and revise. The failed step
// stays failed and execution continues; additionally the planner collaborator
// may replace the remaining pending steps, once per failure, bounded by the
// replan cap. Returns true when the cap is exhausted.
func (c *Coordinator) revise(ctx context.Context, st *AgentState, failed domain.Step) bool {
	if st.Replans >= c.limits.MaxReplans {
		log.Warn().
			Str("session_id", st.SessionID.String()).
			Int("replans", st.Replans).
			Msg("engine.Coordinator.revise: replan cap exhausted")
		return true
	}
	st.Replans++

	var remaining []llm.PlannedStep
	firstPending := st.NextPendingIndex()
	if firstPending >= 0 {
		for _, s := range st.Plan[firstPending:] {
			remaining = append(remaining, llm.PlannedStep{Description: s.Description, TargetNode: s.TargetNode})
		}
	}

	revised, err := c.planner.Revise(ctx, failed, remaining, c.registry.Capabilities())
	if err != nil {
		log.Warn().Err(err).
			Str("session_id", st.SessionID.String()).
			Str("step_id", failed.StepID).
			Msg("engine.Coordinator.revise: revision failed, keeping remaining steps")
		return false
	}
	if len(revised) == 0 || firstPending < 0 {
		return false
	}

	// Replace only pending steps; completed and failed steps are history.
	st.Plan = append(st.Plan[:firstPending], c.materialize(st, revised)...)

	return false
}

// materialize turns planned (description, target_node) pairs into pending
// steps with session-unique step ids drawn from the state's monotone step
// counter, so neither multi-turn sessions nor shrinking revisions ever
// reissue an id that already has a task result row. An oversized plan is
// kept as-is: the step-cap guard in route stops execution at the cap and
// the summary reports the plan as incomplete.
func (c *Coordinator) materialize(st *AgentState, planned []llm.PlannedStep) []domain.Step {
	steps := make([]domain.Step, 0, len(planned))
	for _, p := range planned {
		st.StepSeq++
		steps = append(steps, domain.Step{
			StepID:      fmt.Sprintf("step-%d", st.StepSeq),
			Description: p.Description,
			TargetNode:  p.TargetNode,
			Status:      domain.StepStatusPending,
		})
	}

	return steps
}

// lastStepSeq recovers the highest step id number already persisted for the
// session. Rows carry ids of the form "step-<n>"; anything else is ignored.
func lastStepSeq(results []*domain.TaskResult) int {
	seq := 0
	for _, tr := range results {
		var n int
		if _, err := fmt.Sscanf(tr.StepID, "step-%d", &n); err == nil && n > seq {
			seq = n
		}
	}
	return seq
}

// ensureSession loads an existing session or creates a new one, returning the
// prior conversation for planner context.
func (c *Coordinator) ensureSession(ctx context.Context, sessionID *uuid.UUID, userID *string, text string) (*domain.Session, []*domain.Message, error) {
	if sessionID != nil {
		session, err := c.sessions.GetByID(ctx, *sessionID)
		if err != nil {
			return nil, nil, err
		}
		if session.Status.Terminal() {
			return nil, nil, domain.ErrSessionClosed
		}

		history, err := c.messages.ListBySession(ctx, session.ID, 0)
		if err != nil {
			log.Warn().Err(err).
				Str("session_id", session.ID.String()).
				Msg("engine.Coordinator.ensureSession: history load failed")
		}

		return session, history, nil
	}

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     sessionTitle(text),
		Status:    domain.SessionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	return session, nil, nil
}

// failBeforeExecution implements the PlannerError user-visible behavior: one
// explanatory failure message, session marked failed.
func (c *Coordinator) failBeforeExecution(ctx context.Context, sessionID uuid.UUID, cause error) (*TurnResult, error) {
	reply := "Sorry, I could not work out an analysis plan for this request. " +
		"Please rephrase it or name the stocks, sectors or topics to analyze."

	c.appendMessage(ctx, sessionID, domain.RoleAssistant, reply)
	if err := c.sessions.UpdateStatus(ctx, sessionID, domain.SessionStatusFailed); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Msg("engine.Coordinator.failBeforeExecution: session close failed")
	}

	log.Error().Err(cause).
		Str("session_id", sessionID.String()).
		Msg("engine.Coordinator.failBeforeExecution: run terminated")

	return &TurnResult{SessionID: sessionID, Reply: reply}, nil
}

// appendMessage persists one message; write failures are logged and
// swallowed, never surfaced into control flow.
func (c *Coordinator) appendMessage(ctx context.Context, sessionID uuid.UUID, role domain.MessageRole, content string) {
	msg := &domain.Message{
		ID:          uuid.New(),
		SessionID:   sessionID,
		Role:        role,
		Content:     content,
		Timestamp:   time.Now(),
		MessageType: domain.MessageTypeText,
	}
	if err := c.messages.Append(ctx, msg); err != nil {
		log.Error().Err(err).
			Str("session_id", sessionID.String()).
			Str("role", string(role)).
			Msg("engine.Coordinator.appendMessage: message write failed")
	}
}

// touchSession advances the session's updated_at so recency listings track
// activity, not just status changes. Failures are logged and swallowed.
func (c *Coordinator) touchSession(ctx context.Context, sessionID uuid.UUID) {
	if err := c.sessions.Touch(ctx, sessionID); err != nil {
		log.Warn().Err(err).
			Str("session_id", sessionID.String()).
			Msg("engine.Coordinator.touchSession: touch failed")
	}
}

func (c *Coordinator) publishTurnStarted(ctx context.Context, sessionID uuid.UUID) {
	if c.events == nil {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"type":       "turn_started",
		"session_id": sessionID.String(),
	})
	if err != nil {
		return
	}

	if pubErr := c.events.Publish(ctx, "session:"+sessionID.String(), payload); pubErr != nil {
		log.Warn().Err(pubErr).
			Str("session_id", sessionID.String()).
			Msg("engine.Coordinator.publishTurnStarted: event publish failed")
	}
}

// acquire claims the per-session single-writer slot.
func (c *Coordinator) acquire(sessionID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.active[sessionID]; busy {
		return ErrSessionBusy
	}
	c.active[sessionID] = struct{}{}

	return nil
}

func (c *Coordinator) release(sessionID uuid.UUID) {
	c.mu.Lock()
	delete(c.active, sessionID)
	c.mu.Unlock()
}

func sessionTitle(text string) string {
	title := strings.TrimSpace(text)
	title = strings.ReplaceAll(title, "\n", " ")
	runes := []rune(title)
	if len(runes) > 60 {
		title = string(runes[:60]) + "..."
	}
	return title
}

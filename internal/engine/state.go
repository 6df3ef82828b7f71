package engine

import (
	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/domain"
)

// AgentState is the in-memory working state of one session run. The plan held
// here is authoritative for the lifetime of the run; every transition is
// flushed to the store before control advances, so a crash between
// transitions leaves storage consistent with the last completed step.
type AgentState struct {
	SessionID uuid.UUID
	UserInput string
	History   []*domain.Message
	Plan      []domain.Step
	// Facts accumulates shared fragments contributed by completed nodes,
	// e.g. selected concept groups or identified leading stocks.
	Facts   map[string]string
	Replans int
	// StepSeq is the highest numeric step id issued for this session so far,
	// seeded from persisted task results. Ids only ever move forward; a
	// revision that shrinks the plan never frees an id for reuse.
	StepSeq int
}

func NewAgentState(sessionID uuid.UUID, input string, history []*domain.Message) *AgentState {
	return &AgentState{
		SessionID: sessionID,
		UserInput: input,
		History:   history,
		Facts:     make(map[string]string),
	}
}

// NextPendingIndex returns the index of the first step, in plan order, that
// has not reached a terminal status, or -1 when the plan is exhausted. This
// is the cursor-reconstruction rule: it holds equally for a live run and for
// a plan restored from task results.
func (st *AgentState) NextPendingIndex() int {
	for i, step := range st.Plan {
		if !step.Status.Terminal() {
			return i
		}
	}
	return -1
}

// MergeFacts folds a node's fact fragments into the shared state.
func (st *AgentState) MergeFacts(facts map[string]string) {
	for k, v := range facts {
		st.Facts[k] = v
	}
}

// Snapshot returns a copy of the state safe to hand to a node goroutine.
// A node abandoned on deadline may keep reading its state after the
// coordinator has resumed mutating the live plan and facts, so nodes never
// see the shared instance. History is shared; runs only append to it.
func (st *AgentState) Snapshot() *AgentState {
	facts := make(map[string]string, len(st.Facts))
	for k, v := range st.Facts {
		facts[k] = v
	}
	plan := make([]domain.Step, len(st.Plan))
	copy(plan, st.Plan)

	return &AgentState{
		SessionID: st.SessionID,
		UserInput: st.UserInput,
		History:   st.History,
		Plan:      plan,
		Facts:     facts,
		Replans:   st.Replans,
		StepSeq:   st.StepSeq,
	}
}

// ApplyTaskResults marks plan steps that already have a terminal task result,
// so a restored run resumes at the first unexecuted step instead of
// re-running finished work.
func (st *AgentState) ApplyTaskResults(results []*domain.TaskResult) {
	byStep := make(map[string]*domain.TaskResult, len(results))
	for _, tr := range results {
		byStep[tr.StepID] = tr
	}

	for i := range st.Plan {
		tr, ok := byStep[st.Plan[i].StepID]
		if !ok || !tr.Status.Terminal() {
			continue
		}
		st.Plan[i].Status = tr.Status
		st.Plan[i].Result = tr.Result
		st.Plan[i].Error = tr.ErrorMessage
	}
}

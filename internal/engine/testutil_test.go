package engine_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
	"github.com/gosuda/stockai/internal/llm"
)

// In-memory repositories backing engine tests. They honor the same contracts
// as the postgres implementations: upsert keyed on (session_id, step_id),
// monotone session status, timestamp-ordered listings.

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session

	updateErr error
	touches   int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.SessionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	s, ok := r.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if s.Status.Terminal() {
		return domain.ErrSessionClosed
	}
	s.Status = status
	return nil
}

func (r *memSessionRepo) Touch(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.UpdatedAt = time.Now()
	}
	r.touches++
	return nil
}

func (r *memSessionRepo) ListRecent(_ context.Context, _ int) ([]*domain.Session, error) {
	return nil, nil
}

func (r *memSessionRepo) ListByUser(_ context.Context, _ string, _ int) ([]*domain.Session, error) {
	return nil, nil
}

func (r *memSessionRepo) Search(_ context.Context, _ string, _ int) ([]*domain.Session, error) {
	return nil, nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*domain.Message

	appendErr error
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func (r *memMessageRepo) Append(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r *memMessageRepo) ListBySession(_ context.Context, sessionID uuid.UUID, _ int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memMessageRepo) CountBySession(_ context.Context, sessionID uuid.UUID) (int64, error) {
	msgs, _ := r.ListBySession(context.Background(), sessionID, 0)
	return int64(len(msgs)), nil
}

func (r *memMessageRepo) bySession(sessionID uuid.UUID) []*domain.Message {
	msgs, _ := r.ListBySession(context.Background(), sessionID, 0)
	return msgs
}

type memTaskRepo struct {
	mu sync.Mutex
	// rows preserves insertion order for created_at-ordered listing.
	keys []string
	rows map[string]*domain.TaskResult

	upsertErr error
	upserts   int
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{rows: make(map[string]*domain.TaskResult)}
}

func taskKey(sessionID uuid.UUID, stepID string) string {
	return fmt.Sprintf("%s|%s", sessionID, stepID)
}

func (r *memTaskRepo) Upsert(_ context.Context, tr *domain.TaskResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	key := taskKey(tr.SessionID, tr.StepID)
	cp := *tr
	if existing, ok := r.rows[key]; ok {
		cp.CreatedAt = existing.CreatedAt
	} else {
		r.keys = append(r.keys, key)
	}
	r.rows[key] = &cp
	return nil
}

func (r *memTaskRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]*domain.TaskResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TaskResult
	for _, key := range r.keys {
		tr := r.rows[key]
		if tr.SessionID == sessionID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memTaskRepo) GetByStep(_ context.Context, sessionID uuid.UUID, stepID string) (*domain.TaskResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tr, ok := r.rows[taskKey(sessionID, stepID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

// fakePlanner scripts the collaborator's behavior per test.
type fakePlanner struct {
	classifyFunc func(ctx context.Context, history []*domain.Message, text string) (llm.Decision, error)
	planFunc     func(ctx context.Context, history []*domain.Message, text string, caps []llm.Capability) ([]llm.PlannedStep, error)
	reviseFunc   func(ctx context.Context, failed domain.Step, remaining []llm.PlannedStep, caps []llm.Capability) ([]llm.PlannedStep, error)
}

func (p *fakePlanner) Classify(ctx context.Context, history []*domain.Message, text string) (llm.Decision, error) {
	if p.classifyFunc != nil {
		return p.classifyFunc(ctx, history, text)
	}
	return llm.Decision{NeedsPlan: true}, nil
}

func (p *fakePlanner) Plan(ctx context.Context, history []*domain.Message, text string, caps []llm.Capability) ([]llm.PlannedStep, error) {
	if p.planFunc != nil {
		return p.planFunc(ctx, history, text, caps)
	}
	return nil, llm.ErrMalformedPlan
}

func (p *fakePlanner) Revise(ctx context.Context, failed domain.Step, remaining []llm.PlannedStep, caps []llm.Capability) ([]llm.PlannedStep, error) {
	if p.reviseFunc != nil {
		return p.reviseFunc(ctx, failed, remaining, caps)
	}
	return nil, nil
}

// fakeNode is a scriptable capability node.
type fakeNode struct {
	name     string
	execFunc func(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome
}

func (n *fakeNode) Name() string        { return n.name }
func (n *fakeNode) Description() string { return "test capability " + n.name }

func (n *fakeNode) Execute(ctx context.Context, st *engine.AgentState, step domain.Step) engine.Outcome {
	if n.execFunc != nil {
		return n.execFunc(ctx, st, step)
	}
	return engine.Outcome{Result: "ok"}
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

// harness bundles a coordinator with its backing fakes.
type harness struct {
	coordinator *engine.Coordinator
	sessions    *memSessionRepo
	messages    *memMessageRepo
	tasks       *memTaskRepo
	events      *recordingPublisher
}

func newHarness(planner llm.Planner, nodes []engine.Node, limits engine.Limits) *harness {
	sessions := newMemSessionRepo()
	messages := newMemMessageRepo()
	tasks := newMemTaskRepo()
	events := &recordingPublisher{}

	registry := engine.NewRegistry()
	for _, n := range nodes {
		registry.Register(n)
	}

	executor := engine.NewExecutor(registry, tasks, limits.RunTimeout)
	summarizer := engine.NewSummarizer(sessions, messages, events)
	coordinator := engine.NewCoordinator(
		planner, registry, executor, summarizer,
		sessions, messages, tasks, events, limits,
	)

	return &harness{
		coordinator: coordinator,
		sessions:    sessions,
		messages:    messages,
		tasks:       tasks,
		events:      events,
	}
}

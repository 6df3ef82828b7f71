package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
)

// mockDataStore satisfies v1.DataStore with func-field repositories so each
// test scripts exactly the calls it expects.
type mockDataStore struct {
	sessions *mockSessionRepo
	messages *mockMessageRepo
	tasks    *mockTaskRepo
}

func (s *mockDataStore) Sessions() domain.SessionRepository       { return s.sessions }
func (s *mockDataStore) Messages() domain.MessageRepository       { return s.messages }
func (s *mockDataStore) TaskResults() domain.TaskResultRepository { return s.tasks }

type mockSessionRepo struct {
	createFunc       func(ctx context.Context, s *domain.Session) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error
	touchFunc        func(ctx context.Context, id uuid.UUID) error
	listRecentFunc   func(ctx context.Context, limit int) ([]*domain.Session, error)
	listByUserFunc   func(ctx context.Context, userID string, limit int) ([]*domain.Session, error)
	searchFunc       func(ctx context.Context, query string, limit int) ([]*domain.Session, error)
}

func (m *mockSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockSessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	if m.touchFunc != nil {
		return m.touchFunc(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Session, error) {
	if m.listRecentFunc != nil {
		return m.listRecentFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockSessionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	if m.listByUserFunc != nil {
		return m.listByUserFunc(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockSessionRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Session, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, query, limit)
	}
	return nil, nil
}

type mockMessageRepo struct {
	appendFunc        func(ctx context.Context, m *domain.Message) error
	listBySessionFunc func(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error)
	countFunc         func(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

func (m *mockMessageRepo) Append(ctx context.Context, msg *domain.Message) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, msg)
	}
	return nil
}

func (m *mockMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error) {
	if m.listBySessionFunc != nil {
		return m.listBySessionFunc(ctx, sessionID, limit)
	}
	return nil, nil
}

func (m *mockMessageRepo) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx, sessionID)
	}
	return 0, nil
}

type mockTaskRepo struct {
	upsertFunc        func(ctx context.Context, tr *domain.TaskResult) error
	listBySessionFunc func(ctx context.Context, sessionID uuid.UUID) ([]*domain.TaskResult, error)
	getByStepFunc     func(ctx context.Context, sessionID uuid.UUID, stepID string) (*domain.TaskResult, error)
}

func (m *mockTaskRepo) Upsert(ctx context.Context, tr *domain.TaskResult) error {
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, tr)
	}
	return nil
}

func (m *mockTaskRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TaskResult, error) {
	if m.listBySessionFunc != nil {
		return m.listBySessionFunc(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockTaskRepo) GetByStep(ctx context.Context, sessionID uuid.UUID, stepID string) (*domain.TaskResult, error) {
	if m.getByStepFunc != nil {
		return m.getByStepFunc(ctx, sessionID, stepID)
	}
	return nil, domain.ErrNotFound
}

type mockOrchestrator struct {
	handleMessageFunc func(ctx context.Context, sessionID *uuid.UUID, userID *string, text string) (*engine.TurnResult, error)
}

func (m *mockOrchestrator) HandleMessage(ctx context.Context, sessionID *uuid.UUID, userID *string, text string) (*engine.TurnResult, error) {
	if m.handleMessageFunc != nil {
		return m.handleMessageFunc(ctx, sessionID, userID, text)
	}
	return &engine.TurnResult{Reply: "ok"}, nil
}

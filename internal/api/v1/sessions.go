package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/domain"
)

type ListSessionsInput struct {
	UserID string `query:"user_id" doc:"Filter by end-user identifier"`
	Limit  int    `query:"limit" minimum:"1" maximum:"100" doc:"Maximum sessions to return (default 20)"`
}

type ListSessionsOutput struct {
	Body []*domain.Session
}

type GetSessionInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type SessionDetail struct {
	Session     *domain.Session      `json:"session"`
	Messages    []*domain.Message    `json:"messages"`
	TaskResults []*domain.TaskResult `json:"task_results"`
}

type GetSessionOutput struct {
	Body *SessionDetail
}

type ListSessionTasksInput struct {
	ID uuid.UUID `path:"id" doc:"Session ID"`
}

type ListSessionTasksOutput struct {
	Body []*domain.TaskResult
}

type SearchSessionsInput struct {
	Query string `query:"q" required:"true" minLength:"1" doc:"Text to search in session titles and message content"`
	Limit int    `query:"limit" minimum:"1" maximum:"100" doc:"Maximum sessions to return (default 20)"`
}

type SearchSessionsOutput struct {
	Body []*domain.Session
}

func RegisterSessionRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List recent sessions",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionsInput) (*ListSessionsOutput, error) {
		limit := input.Limit
		if limit == 0 {
			limit = 20
		}

		var (
			sessions []*domain.Session
			err      error
		)
		if input.UserID != "" {
			sessions, err = store.Sessions().ListByUser(ctx, input.UserID, limit)
		} else {
			sessions, err = store.Sessions().ListRecent(ctx, limit)
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list sessions", err)
		}

		return &ListSessionsOutput{Body: sessions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}",
		Summary:     "Fetch one session with its messages and task results",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *GetSessionInput) (*GetSessionOutput, error) {
		session, err := store.Sessions().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to fetch session", err)
		}

		messages, err := store.Messages().ListBySession(ctx, input.ID, 0)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to fetch messages", err)
		}

		tasks, err := store.TaskResults().ListBySession(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to fetch task results", err)
		}

		return &GetSessionOutput{Body: &SessionDetail{
			Session:     session,
			Messages:    messages,
			TaskResults: tasks,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-session-tasks",
		Method:      http.MethodGet,
		Path:        "/sessions/{id}/tasks",
		Summary:     "List task results for a session",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *ListSessionTasksInput) (*ListSessionTasksOutput, error) {
		if _, err := store.Sessions().GetByID(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("session not found")
			}
			return nil, huma.Error500InternalServerError("failed to fetch session", err)
		}

		tasks, err := store.TaskResults().ListBySession(ctx, input.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to fetch task results", err)
		}

		return &ListSessionTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-sessions",
		Method:      http.MethodGet,
		Path:        "/search",
		Summary:     "Search sessions by title and message content",
		Tags:        []string{"Sessions"},
	}, func(ctx context.Context, input *SearchSessionsInput) (*SearchSessionsOutput, error) {
		limit := input.Limit
		if limit == 0 {
			limit = 20
		}

		sessions, err := store.Sessions().Search(ctx, input.Query, limit)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to search sessions", err)
		}

		return &SearchSessionsOutput{Body: sessions}, nil
	})
}

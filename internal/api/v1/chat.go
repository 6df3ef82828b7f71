package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/stockai/internal/domain"
	"github.com/gosuda/stockai/internal/engine"
)

type ChatInput struct {
	Body struct {
		SessionID *uuid.UUID `json:"session_id,omitempty" doc:"Existing session to continue; omit to start a new one"`
		UserID    *string    `json:"user_id,omitempty" doc:"Optional end-user identifier"`
		Message   string     `json:"message" minLength:"1" maxLength:"4000" doc:"The user's request"`
	}
}

type ChatOutput struct {
	Body *engine.TurnResult
}

func RegisterChatRoutes(api huma.API, orchestrator Orchestrator) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Send a message and receive the synthesized analysis reply",
		Tags:        []string{"Chat"},
	}, func(ctx context.Context, input *ChatInput) (*ChatOutput, error) {
		result, err := orchestrator.HandleMessage(ctx, input.Body.SessionID, input.Body.UserID, input.Body.Message)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("session not found")
			case errors.Is(err, domain.ErrSessionClosed):
				return nil, huma.Error409Conflict("session already closed")
			case errors.Is(err, engine.ErrSessionBusy):
				return nil, huma.Error409Conflict("session is already executing a turn")
			default:
				return nil, huma.Error500InternalServerError("failed to process message", err)
			}
		}

		return &ChatOutput{Body: result}, nil
	})
}

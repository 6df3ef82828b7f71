package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/stockai/internal/domain"
)

type TaskResultRepo struct {
	pool *pgxpool.Pool
}

func NewTaskResultRepo(pool *pgxpool.Pool) *TaskResultRepo {
	return &TaskResultRepo{pool: pool}
}

// Upsert writes a task result keyed on (session_id, step_id). Re-entrant
// execution of the same step overwrites the existing row; created_at is
// preserved from the first write.
func (r *TaskResultRepo) Upsert(ctx context.Context, tr *domain.TaskResult) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO task_results
		     (id, session_id, step_id, step_description, target_node, result, status, error_message, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (session_id, step_id) DO UPDATE SET
		     step_description = EXCLUDED.step_description,
		     target_node      = EXCLUDED.target_node,
		     result           = EXCLUDED.result,
		     status           = EXCLUDED.status,
		     error_message    = EXCLUDED.error_message,
		     completed_at     = EXCLUDED.completed_at`,
		tr.ID, tr.SessionID, tr.StepID, tr.StepDescription, tr.TargetNode,
		tr.Result, tr.Status, tr.ErrorMessage, tr.CreatedAt, tr.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("taskResultRepo.Upsert: %w", err)
	}

	return nil
}

func (r *TaskResultRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*domain.TaskResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, step_id, step_description, target_node, result, status, error_message, created_at, completed_at
		 FROM task_results WHERE session_id = $1
		 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("taskResultRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var results []*domain.TaskResult
	for rows.Next() {
		var tr domain.TaskResult

		err = rows.Scan(
			&tr.ID, &tr.SessionID, &tr.StepID, &tr.StepDescription, &tr.TargetNode,
			&tr.Result, &tr.Status, &tr.ErrorMessage, &tr.CreatedAt, &tr.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("taskResultRepo.ListBySession: scan: %w", err)
		}
		results = append(results, &tr)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("taskResultRepo.ListBySession: rows: %w", err)
	}

	return results, nil
}

func (r *TaskResultRepo) GetByStep(ctx context.Context, sessionID uuid.UUID, stepID string) (*domain.TaskResult, error) {
	var tr domain.TaskResult

	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, step_id, step_description, target_node, result, status, error_message, created_at, completed_at
		 FROM task_results WHERE session_id = $1 AND step_id = $2`,
		sessionID, stepID,
	).Scan(
		&tr.ID, &tr.SessionID, &tr.StepID, &tr.StepDescription, &tr.TargetNode,
		&tr.Result, &tr.Status, &tr.ErrorMessage, &tr.CreatedAt, &tr.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("taskResultRepo.GetByStep: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("taskResultRepo.GetByStep: %w", err)
	}

	return &tr, nil
}

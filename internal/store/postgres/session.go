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

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, title, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.UserID, s.Title, s.Status, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}

	return nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	var s domain.Session

	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, status, created_at, updated_at
		 FROM sessions WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}

	return &s, nil
}

// UpdateStatus transitions a session's status. The WHERE clause enforces the
// monotone-status invariant: rows already in a terminal status never match.
func (r *SessionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SessionStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, updated_at = now()
		 WHERE id = $2 AND status NOT IN ('completed', 'failed')`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return fmt.Errorf("sessionRepo.UpdateStatus: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("sessionRepo.UpdateStatus: %w", domain.ErrSessionClosed)
	}

	return nil
}

func (r *SessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Touch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sessionRepo.Touch: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *SessionRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, status, created_at, updated_at
		 FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListRecent: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows, "sessionRepo.ListRecent")
}

func (r *SessionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, status, created_at, updated_at
		 FROM sessions WHERE user_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListByUser: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows, "sessionRepo.ListByUser")
}

// Search matches sessions whose title, or any of whose message content,
// contains the query string (case-insensitive).
func (r *SessionRepo) Search(ctx context.Context, query string, limit int) ([]*domain.Session, error) {
	pattern := "%" + query + "%"

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT s.id, s.user_id, s.title, s.status, s.created_at, s.updated_at
		 FROM sessions s
		 LEFT JOIN messages m ON m.session_id = s.id
		 WHERE s.title ILIKE $1 OR m.content ILIKE $1
		 ORDER BY s.updated_at DESC
		 LIMIT $2`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.Search: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows, "sessionRepo.Search")
}

func scanSessions(rows pgx.Rows, caller string) ([]*domain.Session, error) {
	var sessions []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return sessions, nil
}

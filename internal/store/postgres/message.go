package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/stockai/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO messages (id, session_id, role, content, timestamp, message_type)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.SessionID, m.Role, m.Content, m.Timestamp, m.MessageType,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.Append: %w", err)
	}

	return nil
}

func (r *MessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `SELECT id, session_id, role, content, timestamp, message_type
	          FROM messages WHERE session_id = $1
	          ORDER BY timestamp`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var m domain.Message

		err = rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Timestamp, &m.MessageType)
		if err != nil {
			return nil, fmt.Errorf("messageRepo.ListBySession: scan: %w", err)
		}
		messages = append(messages, &m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("messageRepo.ListBySession: rows: %w", err)
	}

	return messages, nil
}

func (r *MessageRepo) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("messageRepo.CountBySession: %w", err)
	}

	return count, nil
}

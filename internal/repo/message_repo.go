package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
)

// MessageRepo — репозиторий сообщений чата.
type MessageRepo struct {
	pool *pgxpool.Pool
}

// NewMessageRepo создаёт новый MessageRepo.
func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// Create сохраняет сообщение.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	var metadataJSON []byte
	if m.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
	}

	query := `
		INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		m.ID, m.SessionID, m.Role, m.Content, metadataJSON, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListBySession возвращает сообщения сессии в хронологическом порядке.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var metadataJSON []byte

		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &metadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

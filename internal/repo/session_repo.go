package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
)

// SessionRepo — репозиторий сессий чата.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo создаёт новый SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Create создаёт новую сессию.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	query := `
		INSERT INTO chat_sessions (id, title, pipeline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, s.ID, s.Title, s.Pipeline, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetByID возвращает сессию по ID.
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, title, pipeline, created_at, updated_at
		FROM chat_sessions
		WHERE id = $1
	`
	var s domain.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Title, &s.Pipeline, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// List возвращает сессии, отсортированные по времени последней активности.
func (r *SessionRepo) List(ctx context.Context, limit, offset int) ([]domain.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, title, pipeline, created_at, updated_at
		FROM chat_sessions
		ORDER BY updated_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Pipeline, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateTitle устанавливает сгенерированный заголовок сессии.
func (r *SessionRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	query := `
		UPDATE chat_sessions
		SET title = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, id, title, time.Now())
	if err != nil {
		return fmt.Errorf("update session title: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Touch обновляет время последней активности сессии.
func (r *SessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE chat_sessions SET updated_at = $2 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteInactiveBefore удаляет сессии, неактивные с указанного момента.
// Сообщения и документы удаляются каскадом (FK ON DELETE CASCADE).
// Возвращает количество удалённых сессий.
func (r *SessionRepo) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM chat_sessions WHERE updated_at < $1`
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete inactive sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

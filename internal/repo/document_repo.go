package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
)

// DocumentRepo — репозиторий документов сессий.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo создаёт новый DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// Create сохраняет документ.
func (r *DocumentRepo) Create(ctx context.Context, d *domain.Document) error {
	query := `
		INSERT INTO documents (id, session_id, filename, content, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, d.ID, d.SessionID, d.Filename, d.Content, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID возвращает документ по ID.
func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := `
		SELECT id, session_id, filename, content, uploaded_at
		FROM documents
		WHERE id = $1
	`
	var d domain.Document
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.SessionID, &d.Filename, &d.Content, &d.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}

// ListBySession возвращает документы сессии в порядке загрузки.
func (r *DocumentRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]domain.Document, error) {
	query := `
		SELECT id, session_id, filename, content, uploaded_at
		FROM documents
		WHERE session_id = $1
		ORDER BY uploaded_at ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Filename, &d.Content, &d.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

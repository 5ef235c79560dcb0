package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PipelineRepo — репозиторий пользовательских определений pipeline.
//
// Встроенные определения живут в бинарнике; сюда попадают определения,
// опубликованные через API, и при старте подгружаются в реестр поверх
// встроенных.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// StoredPipeline — сохранённое определение pipeline.
type StoredPipeline struct {
	Name       string    `json:"name"`
	Definition []byte    `json:"definition"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Upsert сохраняет определение pipeline, заменяя существующее с тем же именем.
func (r *PipelineRepo) Upsert(ctx context.Context, name string, definition []byte) error {
	now := time.Now()
	query := `
		INSERT INTO pipeline_definitions (name, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE
		SET definition = EXCLUDED.definition, updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, name, definition, now)
	if err != nil {
		return fmt.Errorf("upsert pipeline: %w", err)
	}
	return nil
}

// Get возвращает сохранённое определение по имени.
func (r *PipelineRepo) Get(ctx context.Context, name string) (*StoredPipeline, error) {
	query := `
		SELECT name, definition, created_at, updated_at
		FROM pipeline_definitions
		WHERE name = $1
	`
	var p StoredPipeline
	err := r.pool.QueryRow(ctx, query, name).Scan(&p.Name, &p.Definition, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan pipeline: %w", err)
	}
	return &p, nil
}

// List возвращает все сохранённые определения.
func (r *PipelineRepo) List(ctx context.Context) ([]StoredPipeline, error) {
	query := `
		SELECT name, definition, created_at, updated_at
		FROM pipeline_definitions
		ORDER BY name ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []StoredPipeline
	for rows.Next() {
		var p StoredPipeline
		if err := rows.Scan(&p.Name, &p.Definition, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

// Delete удаляет сохранённое определение.
func (r *PipelineRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pipeline_definitions WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

package pipelines

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/repo"
)

//go:embed simple_chat.json
var builtinFS embed.FS

// Ошибки реестра.
var (
	// ErrPipelineNotFound — pipeline с таким именем не зарегистрирован.
	ErrPipelineNotFound = errors.New("pipeline not found")
)

// DefaultPipeline — имя pipeline по умолчанию для POST /chat.
const DefaultPipeline = "simple_chat"

// Registry — реестр определений pipeline.
//
// Потокобезопасен: определения читаются на каждый чат-запрос,
// а публикация через API может прийти в любой момент.
type Registry struct {
	logger *slog.Logger

	mu        sync.RWMutex
	pipelines map[string]*engine.Pipeline
	raw       map[string][]byte
}

// NewRegistry создаёт реестр со встроенными определениями.
func NewRegistry(logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		logger:    logger,
		pipelines: make(map[string]*engine.Pipeline),
		raw:       make(map[string][]byte),
	}

	data, err := builtinFS.ReadFile("simple_chat.json")
	if err != nil {
		return nil, fmt.Errorf("read builtin pipeline: %w", err)
	}
	if err := r.Add(data); err != nil {
		return nil, fmt.Errorf("register builtin pipeline: %w", err)
	}

	return r, nil
}

// Add валидирует и регистрирует определение из JSON.
// Определение с уже занятым именем заменяет предыдущее.
func (r *Registry) Add(data []byte) error {
	p, err := engine.Load(data)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	raw := make([]byte, len(data))
	copy(raw, data)

	r.pipelines[p.ID] = p
	r.raw[p.ID] = raw

	r.logger.Info("pipeline registered", "pipeline_id", p.ID, "steps", len(p.Steps))
	return nil
}

// LoadDir регистрирует все *.json определения из каталога.
// Отсутствующий каталог — не ошибка.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pipelines dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read pipeline file %s: %w", path, err)
		}
		if err := r.Add(data); err != nil {
			return fmt.Errorf("load pipeline file %s: %w", path, err)
		}
	}
	return nil
}

// LoadStore регистрирует определения, опубликованные через API и
// сохранённые в БД. Вызывается при старте после LoadDir: сохранённые
// определения имеют высший приоритет.
func (r *Registry) LoadStore(ctx context.Context, store *repo.PipelineRepo) error {
	stored, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list stored pipelines: %w", err)
	}

	for _, p := range stored {
		if err := r.Add(p.Definition); err != nil {
			// Сохранённое определение валидировалось при публикации;
			// битая запись не должна валить старт сервера.
			r.logger.Warn("skipping invalid stored pipeline", "name", p.Name, "error", err)
		}
	}
	return nil
}

// Get возвращает pipeline по имени.
func (r *Registry) Get(name string) (*engine.Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pipelines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return p, nil
}

// Raw возвращает исходный JSON определения.
func (r *Registry) Raw(name string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, ok := r.raw[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return raw, nil
}

// Names возвращает отсортированный список зарегистрированных имён.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

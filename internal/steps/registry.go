package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// Factory конструирует шаг из зависимостей и конфигурации.
type Factory func(svc Services, config map[string]any) (engine.Executable, error)

// Registry — типизированный реестр шагов.
//
// Разрешает executable_ref определения pipeline в готовый шаг.
// Реализует engine.ExecutableSet. Потокобезопасен.
type Registry struct {
	svc Services

	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry создаёт пустой реестр.
func NewRegistry(svc Services) *Registry {
	return &Registry{
		svc:       svc,
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными шагами.
func DefaultRegistry(svc Services) *Registry {
	r := NewRegistry(svc)

	r.Register("fetch_history", NewFetchHistoryStep)
	r.Register("fetch_documents", NewFetchDocumentsStep)
	r.Register("chat", NewChatStep)
	r.Register("generate_title", NewGenerateTitleStep)

	return r
}

// Register регистрирует фабрику шага под именем ref.
// Повторная регистрация перезаписывает предыдущую.
func (r *Registry) Register(ref string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[ref] = factory
}

// Resolve конструирует шаг по executable_ref и его конфигурации.
// Возвращает ErrStepNotFound для незарегистрированного ref.
func (r *Registry) Resolve(ref string, config map[string]any) (engine.Executable, error) {
	r.mu.RLock()
	factory, exists := r.factories[ref]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, ref)
	}

	return factory(r.svc, config)
}

// Has проверяет, зарегистрирован ли ref.
func (r *Registry) Has(ref string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[ref]
	return exists
}

// Refs возвращает отсортированный список зарегистрированных ref.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.factories))
	for ref := range r.factories {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

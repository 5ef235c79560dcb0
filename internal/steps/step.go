package steps

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
	"github.com/Fiberwise-AI/ia-chat-app/internal/llm"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — executable_ref не найден в реестре.
	ErrStepNotFound = errors.New("step not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrMissingMessage — во входе шага нет сообщения пользователя.
	ErrMissingMessage = errors.New("missing message in step input")
)

// Store — доступ шагов к данным сессии.
//
// Реализуется композицией репозиториев; шаги видят только то,
// что им нужно.
type Store interface {
	// SessionMessages возвращает сообщения сессии в хронологическом порядке.
	SessionMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error)

	// SessionDocuments возвращает документы сессии в порядке загрузки.
	SessionDocuments(ctx context.Context, sessionID uuid.UUID) ([]domain.Document, error)
}

// Services — зависимости, доступные шагам.
type Services struct {
	// Store — хранилище сессий.
	Store Store

	// LLM — провайдер генерации текста.
	LLM llm.Provider

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

func (s Services) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// sessionIDFromInput извлекает session_id из входа шага.
// Отсутствующий, пустой или нераспознаваемый идентификатор — не ошибка:
// шаги трактуют его как "сессии ещё нет".
func sessionIDFromInput(input map[string]any) (uuid.UUID, bool) {
	raw, ok := input["session_id"]
	if !ok || raw == nil {
		return uuid.Nil, false
	}

	switch v := raw.(type) {
	case uuid.UUID:
		return v, v != uuid.Nil
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	default:
		return uuid.Nil, false
	}
}

// inputString извлекает строковое значение из входа шага.
func inputString(input map[string]any, key string) string {
	if v, ok := input[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// configString извлекает строковое значение из конфига.
func configString(config map[string]any, key, defaultVal string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return defaultVal
}

// configInt извлекает числовое значение из конфига.
// JSON-декодер отдаёт числа как float64.
func configInt(config map[string]any, key string, defaultVal int) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// configFloat извлекает дробное значение из конфига.
func configFloat(config map[string]any, key string, defaultVal float64) float64 {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return defaultVal
}

// historyFromInput приводит chat_history из входа шага к сообщениям LLM.
// Внутри процесса история приходит как []map[string]any, после JSON —
// как []any.
func historyFromInput(input map[string]any) []llm.Message {
	raw, ok := input["chat_history"]
	if !ok || raw == nil {
		return nil
	}

	var entries []map[string]any
	switch v := raw.(type) {
	case []map[string]any:
		entries = v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	default:
		return nil
	}

	messages := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		role, _ := e["role"].(string)
		content, _ := e["content"].(string)
		if role == "" || content == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: content})
	}
	return messages
}

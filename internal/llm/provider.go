package llm

import (
	"context"
	"errors"
)

// Ошибки провайдеров.
var (
	// ErrNoAPIKey — не задан API-ключ провайдера.
	ErrNoAPIKey = errors.New("no api key")

	// ErrEmptyCompletion — провайдер вернул пустой ответ.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Message — одно сообщение в запросе к модели.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Роли сообщений в запросе.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request — запрос на генерацию.
type Request struct {
	// Messages — полный контекст: системная инструкция, история, вопрос.
	Messages []Message

	// Temperature — температура сэмплирования. Ноль — использовать
	// значение модели по умолчанию.
	Temperature float32

	// MaxTokens — ограничение длины ответа. Ноль — без ограничения.
	MaxTokens int
}

// Usage — потребление токенов и стоимость запроса.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Response — ответ модели.
type Response struct {
	// Content — сгенерированный текст.
	Content string

	// Model — модель, фактически обработавшая запрос.
	Model string

	// Usage — потребление токенов и стоимость.
	Usage Usage
}

// Provider — провайдер генерации текста.
type Provider interface {
	// Complete выполняет один запрос на генерацию.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name возвращает имя провайдера для метаданных сообщений.
	Name() string
}

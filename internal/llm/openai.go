package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// Стоимость за 1M токенов (USD) для известных моделей.
// Неизвестная модель даёт нулевую стоимость в метаданных.
var modelPricing = map[string]struct{ prompt, completion float64 }{
	"gpt-4o":        {2.50, 10.00},
	"gpt-4o-mini":   {0.15, 0.60},
	"gpt-4.1":       {2.00, 8.00},
	"gpt-4.1-mini":  {0.40, 1.60},
	"gpt-3.5-turbo": {0.50, 1.50},
}

// OpenAIProvider — провайдер для OpenAI-совместимых API.
//
// Через OPENAI_BASE_URL подключается и к локальным серверам
// (Ollama, vLLM), говорящим на том же протоколе.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// OpenAIConfig — конфигурация OpenAI провайдера.
type OpenAIConfig struct {
	// APIKey — ключ API (default: env OPENAI_API_KEY).
	APIKey string

	// BaseURL — адрес API (default: env OPENAI_BASE_URL либо api.openai.com).
	BaseURL string

	// Model — модель по умолчанию (default: env CHAT_MODEL либо gpt-4o-mini).
	Model string

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// NewOpenAIProvider создаёт провайдер из конфигурации и окружения.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("CHAT_MODEL")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(apiKey)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	logger.Info("llm provider initialized", "provider", "openai", "model", model)

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}, nil
}

// Name возвращает имя провайдера.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete выполняет запрос chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	apiReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		apiReq.Temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		apiReq.MaxTokens = req.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		CostUSD:          EstimateCost(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens),
	}

	p.logger.Debug("completion received",
		"model", resp.Model,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"finish_reason", resp.Choices[0].FinishReason,
	)

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage:   usage,
	}, nil
}

// EstimateCost оценивает стоимость запроса в USD по прайсу модели.
func EstimateCost(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*pricing.prompt +
		float64(completionTokens)/1e6*pricing.completion
}

package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/llm"
)

// titlePrompt — инструкция генерации заголовка.
const titlePrompt = "Generate a concise 3-6 word title for a conversation that " +
	"begins with the user message below. Respond with the title only: no quotes, " +
	"no punctuation at the end, no explanations."

// maxTitleLen — предел длины заголовка в символах.
const maxTitleLen = 60

// GenerateTitleStep генерирует короткий заголовок сессии по первому
// сообщению пользователя. Ветка выполняется параллельно основному
// ответу и гейтится условием is_first_message.
type GenerateTitleStep struct {
	svc         Services
	temperature float64
	maxTokens   int
}

// NewGenerateTitleStep — фабрика для Registry.
func NewGenerateTitleStep(svc Services, config map[string]any) (engine.Executable, error) {
	return &GenerateTitleStep{
		svc:         svc,
		temperature: configFloat(config, "temperature", 0.3),
		maxTokens:   configInt(config, "max_tokens", 20),
	}, nil
}

// Run генерирует заголовок.
func (s *GenerateTitleStep) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	userMessage := inputString(input, "message")
	if userMessage == "" {
		return nil, ErrMissingMessage
	}

	resp, err := s.svc.LLM.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: titlePrompt},
			{Role: llm.RoleUser, Content: userMessage},
		},
		Temperature: float32(s.temperature),
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm title completion: %w", err)
	}

	title := CleanTitle(resp.Content)

	s.svc.logger().Debug("title generated", "title", title)

	return map[string]any{
		"title": title,
		"title_metadata": map[string]any{
			"provider":     s.svc.LLM.Name(),
			"model":        resp.Model,
			"total_tokens": resp.Usage.TotalTokens,
			"cost_usd":     resp.Usage.CostUSD,
		},
	}, nil
}

// CleanTitle нормализует сырой ответ модели: срезает пробелы и
// обрамляющие кавычки, ограничивает длину maxTitleLen символами.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	title = strings.Trim(title, `"'`)
	title = strings.TrimPrefix(title, "“")
	title = strings.TrimSuffix(title, "”")
	title = strings.TrimSpace(title)

	runes := []rune(title)
	if len(runes) > maxTitleLen {
		title = strings.TrimSpace(string(runes[:maxTitleLen-3])) + "..."
	}
	return title
}

package steps

import (
	"context"
	"fmt"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/llm"
)

// defaultSystemPrompt — системная инструкция, если pipeline не задал свою.
const defaultSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."

// citationInstructions добавляются к системной инструкции, когда в
// контексте есть документы.
const citationInstructions = "Use the provided documents to answer when relevant. " +
	"When you use information from a document chunk, cite it with its identifier " +
	"in square brackets, for example [doc1_chunk0]. Do not invent identifiers."

// ChatStep — основной вызов LLM.
//
// Собирает контекст из системной инструкции, документов (если ветка
// fetch_documents их принесла), истории и сообщения пользователя.
type ChatStep struct {
	svc          Services
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// NewChatStep — фабрика для Registry.
func NewChatStep(svc Services, config map[string]any) (engine.Executable, error) {
	temperature := configFloat(config, "temperature", 0.7)
	if temperature < 0 || temperature > 2 {
		return nil, fmt.Errorf("%w: temperature=%v", ErrInvalidConfig, temperature)
	}

	return &ChatStep{
		svc:          svc,
		systemPrompt: configString(config, "system_prompt", defaultSystemPrompt),
		temperature:  temperature,
		maxTokens:    configInt(config, "max_tokens", 0),
	}, nil
}

// Run выполняет генерацию ответа.
func (s *ChatStep) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	userMessage := inputString(input, "message")
	if userMessage == "" {
		return nil, ErrMissingMessage
	}

	system := s.systemPrompt
	documentContext := inputString(input, "document_context")
	if documentContext != "" {
		system = system + "\n\n" + citationInstructions + "\n\nDocuments:\n" + documentContext
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	messages = append(messages, historyFromInput(input)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})

	resp, err := s.svc.LLM.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: float32(s.temperature),
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("llm completion: %w", err)
	}

	metadata := map[string]any{
		"provider":          s.svc.LLM.Name(),
		"model":             resp.Model,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
		"total_tokens":      resp.Usage.TotalTokens,
		"cost_usd":          resp.Usage.CostUSD,
	}
	if docs, ok := input["documents_used"]; ok {
		metadata["documents_used"] = docs
	}
	if mapping, ok := input["chunk_mapping"]; ok {
		metadata["chunk_mapping"] = mapping
	}

	s.svc.logger().Debug("chat completion",
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
		"with_documents", documentContext != "",
	)

	return map[string]any{
		"response": resp.Content,
		"metadata": metadata,
	}, nil
}

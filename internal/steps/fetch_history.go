package steps

import (
	"context"
	"fmt"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// FetchHistoryStep загружает историю сессии.
//
// Выходы: chat_history, message_count и is_first_message — флаг,
// гейтящий ветку генерации заголовка. Сообщение считается первым,
// пока в сессии нет ни одного ответа ассистента: если предыдущий
// запуск упал до сохранения ответа, заголовок будет сгенерирован
// при следующей попытке.
type FetchHistoryStep struct {
	svc Services
}

// NewFetchHistoryStep — фабрика для Registry.
func NewFetchHistoryStep(svc Services, _ map[string]any) (engine.Executable, error) {
	return &FetchHistoryStep{svc: svc}, nil
}

// Run загружает историю. Отсутствие session_id — штатный случай новой
// сессии: пустая история, is_first_message=true.
func (s *FetchHistoryStep) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	sessionID, ok := sessionIDFromInput(input)
	if !ok {
		return map[string]any{
			"chat_history":     []map[string]any{},
			"message_count":    0,
			"is_first_message": true,
		}, nil
	}

	messages, err := s.svc.Store.SessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session messages: %w", err)
	}

	history := make([]map[string]any, 0, len(messages))
	assistantReplies := 0
	for _, m := range messages {
		switch m.Role {
		case domain.RoleUser:
			// в историю как есть
		case domain.RoleAssistant:
			assistantReplies++
		default:
			// системные сообщения в контекст модели не попадают
			continue
		}
		history = append(history, map[string]any{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	s.svc.logger().Debug("history fetched",
		"session_id", sessionID,
		"messages", len(history),
		"assistant_replies", assistantReplies,
	)

	return map[string]any{
		"chat_history":     history,
		"message_count":    len(history),
		"is_first_message": assistantReplies == 0,
	}, nil
}

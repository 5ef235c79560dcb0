package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль автора сообщения.
type Role string

const (
	// RoleUser — сообщение пользователя.
	RoleUser Role = "user"

	// RoleAssistant — ответ модели.
	RoleAssistant Role = "assistant"

	// RoleSystem — системная инструкция (в историю чата не входит).
	RoleSystem Role = "system"
)

// Message — сообщение в сессии чата.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID uuid.UUID `json:"id"`

	// SessionID — сессия, к которой относится сообщение.
	SessionID uuid.UUID `json:"session_id"`

	// Role — роль автора: user, assistant или system.
	Role Role `json:"role"`

	// Content — текст сообщения.
	Content string `json:"content"`

	// Metadata — метаданные генерации для assistant-сообщений:
	// провайдер, модель, токены, стоимость, использованные документы.
	// Для user-сообщений пусто.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// NewUserMessage создаёт сообщение пользователя.
func NewUserMessage(sessionID uuid.UUID, content string) *Message {
	return &Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage создаёт ответ модели с метаданными генерации.
func NewAssistantMessage(sessionID uuid.UUID, content string, metadata map[string]any) *Message {
	return &Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      RoleAssistant,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

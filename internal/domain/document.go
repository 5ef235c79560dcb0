package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document — документ, загруженный в сессию.
//
// Хранится уже извлечённый текст: извлечение из PDF и прочих форматов
// происходит вне этого сервиса.
type Document struct {
	// ID — уникальный идентификатор документа.
	ID uuid.UUID `json:"id"`

	// SessionID — сессия, к которой привязан документ.
	SessionID uuid.UUID `json:"session_id"`

	// Filename — имя исходного файла.
	Filename string `json:"filename"`

	// Content — извлечённый текст документа.
	Content string `json:"content"`

	// UploadedAt — время загрузки.
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewDocument создаёт документ с новым ID.
func NewDocument(sessionID uuid.UUID, filename, content string) *Document {
	return &Document{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Filename:   filename,
		Content:    content,
		UploadedAt: time.Now(),
	}
}

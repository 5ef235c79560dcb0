package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session — сессия чата.
//
// Сессия группирует сообщения одного разговора. Первое сообщение
// пользователя порождает сессию с плейсхолдером вместо заголовка;
// настоящий заголовок появляется, когда pipeline выполняет ветку
// generate_title.
type Session struct {
	// ID — уникальный идентификатор сессии.
	ID uuid.UUID `json:"id"`

	// Title — заголовок сессии (3-6 слов, генерируется LLM).
	Title string `json:"title"`

	// Pipeline — имя pipeline, обслуживающего сессию.
	Pipeline string `json:"pipeline"`

	// CreatedAt — время создания сессии.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последней активности (новое сообщение,
	// смена заголовка). По этому полю сортируется список сессий.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultTitle — заголовок новой сессии до генерации настоящего.
const DefaultTitle = "New Chat"

// NewSession создаёт сессию с плейсхолдером вместо заголовка.
func NewSession(pipeline string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		Title:     DefaultTitle,
		Pipeline:  pipeline,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasGeneratedTitle возвращает true, если заголовок уже сгенерирован.
func (s *Session) HasGeneratedTitle() bool {
	return s.Title != "" && s.Title != DefaultTitle
}

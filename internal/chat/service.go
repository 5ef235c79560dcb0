package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/pipelines"
)

// Ошибки сервиса.
var (
	// ErrEmptyMessage — пустое сообщение пользователя.
	ErrEmptyMessage = errors.New("empty message")

	// ErrNoResponse — pipeline завершился, но шаг chat не дал ответа.
	ErrNoResponse = errors.New("pipeline produced no response")
)

// responseStepID — шаг, чей выход считается ответом ассистента.
const responseStepID = "chat"

// titleStepID — шаг, чей выход становится заголовком сессии.
const titleStepID = "generate_title"

// SessionStore — операции сервиса над сессиями.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	Touch(ctx context.Context, id uuid.UUID) error
}

// MessageStore — операции сервиса над сообщениями.
type MessageStore interface {
	Create(ctx context.Context, m *domain.Message) error
}

// Service выполняет сценарий одного сообщения чата.
type Service struct {
	sessions SessionStore
	messages MessageStore
	registry *pipelines.Registry
	runner   *engine.Runner
	execs    engine.ExecutableSet
	logger   *slog.Logger
}

// Config — зависимости Service.
type Config struct {
	Sessions SessionStore
	Messages MessageStore
	Registry *pipelines.Registry
	Runner   *engine.Runner
	Execs    engine.ExecutableSet

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// NewService создаёт Service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: cfg.Sessions,
		messages: cfg.Messages,
		registry: cfg.Registry,
		runner:   cfg.Runner,
		execs:    cfg.Execs,
		logger:   logger,
	}
}

// SendRequest — входящее сообщение чата.
type SendRequest struct {
	// SessionID — сессия для продолжения; nil — создать новую.
	SessionID *uuid.UUID

	// Message — текст сообщения пользователя.
	Message string

	// Pipeline — имя pipeline; пустое — pipelines.DefaultPipeline.
	Pipeline string
}

// SendResult — итог обработки сообщения.
type SendResult struct {
	// SessionID — сессия (возможно, только что созданная).
	SessionID uuid.UUID `json:"session_id"`

	// RunID — идентификатор запуска pipeline.
	RunID uuid.UUID `json:"run_id"`

	// Response — ответ ассистента.
	Response string `json:"response"`

	// Title — заголовок, если ветка generate_title выполнилась.
	Title string `json:"title,omitempty"`

	// Metadata — метаданные генерации ответа.
	Metadata map[string]any `json:"metadata,omitempty"`

	// NewSession — сессия создана этим запросом.
	NewSession bool `json:"new_session"`
}

// Send обрабатывает одно сообщение: сессия, pipeline, персистентность.
//
// Провал ветки заголовка не трогает ответ: ветки изолированы движком,
// ответ сохраняется, заголовок останется плейсхолдером до следующего
// первого сообщения.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if req.Message == "" {
		return nil, ErrEmptyMessage
	}

	pipelineName := req.Pipeline
	if pipelineName == "" {
		pipelineName = pipelines.DefaultPipeline
	}
	p, err := s.registry.Get(pipelineName)
	if err != nil {
		return nil, err
	}

	session, created, err := s.resolveSession(ctx, req.SessionID, pipelineName)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("session_id", session.ID, "pipeline", pipelineName)

	userMsg := domain.NewUserMessage(session.ID, req.Message)
	if err := s.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	input := map[string]any{
		"message":    req.Message,
		"session_id": session.ID.String(),
	}

	result, err := s.runner.Run(ctx, p, s.execs, input)
	if err != nil {
		return nil, fmt.Errorf("run pipeline %s: %w", pipelineName, err)
	}

	response, metadata, err := extractResponse(result)
	if err != nil {
		return nil, err
	}

	assistantMsg := domain.NewAssistantMessage(session.ID, response, metadata)
	if err := s.messages.Create(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	title := extractTitle(result)
	if title != "" {
		if err := s.sessions.UpdateTitle(ctx, session.ID, title); err != nil {
			// Ответ уже сохранён; заголовок не стоит всего запроса
			logger.Warn("title update failed", "error", err)
			title = ""
		}
	} else {
		if err := s.sessions.Touch(ctx, session.ID); err != nil {
			logger.Warn("session touch failed", "error", err)
		}
	}

	logger.Info("message handled",
		"run_id", result.RunID,
		"new_session", created,
		"titled", title != "",
	)

	return &SendResult{
		SessionID:  session.ID,
		RunID:      result.RunID,
		Response:   response,
		Title:      title,
		Metadata:   metadata,
		NewSession: created,
	}, nil
}

// resolveSession находит существующую сессию либо создаёт новую.
func (s *Service) resolveSession(ctx context.Context, id *uuid.UUID, pipelineName string) (*domain.Session, bool, error) {
	if id != nil {
		session, err := s.sessions.GetByID(ctx, *id)
		if err != nil {
			return nil, false, fmt.Errorf("load session: %w", err)
		}
		return session, false, nil
	}

	session := domain.NewSession(pipelineName)
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

// extractResponse достаёт ответ и метаданные из выхода шага chat.
func extractResponse(result *engine.Result) (string, map[string]any, error) {
	out, ok := result.Outputs[responseStepID]
	if !ok {
		return "", nil, ErrNoResponse
	}

	response, _ := out["response"].(string)
	if response == "" {
		return "", nil, ErrNoResponse
	}

	metadata, _ := out["metadata"].(map[string]any)
	return response, metadata, nil
}

// extractTitle достаёт заголовок из ветки generate_title.
// Пропущенная ветка отсутствует в выходах — это штатно.
func extractTitle(result *engine.Result) string {
	out, ok := result.Outputs[titleStepID]
	if !ok {
		return ""
	}
	title, _ := out["title"].(string)
	return title
}

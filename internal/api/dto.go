package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/repo"
)

// Chat DTOs

// ChatRequest — запрос на обработку сообщения чата.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Pipeline  string `json:"pipeline,omitempty"`
}

// Session DTOs

// SessionResponse — ответ с сессией.
type SessionResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Pipeline  string    `json:"pipeline"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionFromDomain конвертирует domain.Session в SessionResponse.
func SessionFromDomain(s domain.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		Pipeline:  s.Pipeline,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Message DTOs

// MessageResponse — ответ с сообщением.
type MessageResponse struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MessageFromDomain конвертирует domain.Message в MessageResponse.
func MessageFromDomain(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		Metadata:  m.Metadata,
		CreatedAt: m.CreatedAt,
	}
}

// Document DTOs

// UploadDocumentRequest — запрос на загрузку документа.
// Content — готовый текст: извлечение текста из бинарных форматов
// остаётся за клиентом.
type UploadDocumentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// DocumentResponse — ответ с документом (без содержимого).
type DocumentResponse struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Filename   string    `json:"filename"`
	Size       int       `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentFromDomain конвертирует domain.Document в DocumentResponse.
func DocumentFromDomain(d domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		SessionID:  d.SessionID,
		Filename:   d.Filename,
		Size:       len(d.Content),
		UploadedAt: d.UploadedAt,
	}
}

// Pipeline DTOs

// PublishPipelineRequest — запрос на публикацию определения pipeline.
type PublishPipelineRequest struct {
	Definition json.RawMessage `json:"definition"`
}

// PipelineSummary — краткая запись о pipeline в списке.
type PipelineSummary struct {
	Name string `json:"name"`
}

// PipelineResponse — ответ с полным определением pipeline.
type PipelineResponse struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// PipelineFromStored конвертирует repo.StoredPipeline в PipelineResponse.
func PipelineFromStored(p repo.StoredPipeline) PipelineResponse {
	return PipelineResponse{
		Name:       p.Name,
		Definition: json.RawMessage(p.Definition),
	}
}

// Run DTOs

// RunPipelineRequest — запрос на отладочный запуск pipeline.
type RunPipelineRequest struct {
	Input map[string]any `json:"input,omitempty"`
}

// RunResponse — итог запуска pipeline.
type RunResponse struct {
	RunID      uuid.UUID                 `json:"run_id"`
	PipelineID string                    `json:"pipeline_id"`
	Outputs    map[string]map[string]any `json:"outputs"`
	Statuses   map[string]string         `json:"statuses"`
	Failed     map[string]string         `json:"failed,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	DurationMS int64                     `json:"duration_ms"`
}

// RunFromResult конвертирует engine.Result в RunResponse.
func RunFromResult(r *engine.Result) RunResponse {
	statuses := make(map[string]string, len(r.Statuses))
	for stepID, status := range r.Statuses {
		statuses[stepID] = string(status)
	}
	return RunResponse{
		RunID:      r.RunID,
		PipelineID: r.PipelineID,
		Outputs:    r.Outputs,
		Statuses:   statuses,
		Failed:     r.Failed,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
	}
}

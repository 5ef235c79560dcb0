package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
)

// ListSessions возвращает сессии, отсортированные по последней активности.
// GET /api/v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	sessions, err := h.sessionRepo.List(r.Context(), limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		result[i] = SessionFromDomain(s)
	}

	List(w, result, len(result))
}

// GetSession возвращает сессию по ID.
// GET /api/v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	session, err := h.sessionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "session not found") {
		return
	}

	Success(w, SessionFromDomain(*session))
}

// ListSessionMessages возвращает историю сессии в хронологическом порядке.
// GET /api/v1/sessions/{id}/messages
func (h *Handler) ListSessionMessages(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	if _, err := h.sessionRepo.GetByID(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "session not found")
		return
	}

	messages, err := h.messageRepo.ListBySession(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]MessageResponse, len(messages))
	for i, m := range messages {
		result[i] = MessageFromDomain(m)
	}

	List(w, result, len(result))
}

// ListSessionDocuments возвращает документы сессии.
// GET /api/v1/sessions/{id}/documents
func (h *Handler) ListSessionDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	documents, err := h.documentRepo.ListBySession(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DocumentResponse, len(documents))
	for i, d := range documents {
		result[i] = DocumentFromDomain(d)
	}

	List(w, result, len(result))
}

// UploadDocument прикрепляет текстовый документ к сессии.
// POST /api/v1/sessions/{id}/documents
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid session id")
		return
	}

	var req UploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Filename == "" {
		BadRequest(w, "filename is required")
		return
	}
	if req.Content == "" {
		BadRequest(w, "content is required")
		return
	}

	if _, err := h.sessionRepo.GetByID(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "session not found")
		return
	}

	doc := domain.NewDocument(id, req.Filename, req.Content)
	if err := h.documentRepo.Create(r.Context(), doc); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, DocumentFromDomain(*doc))
}

// pagination читает limit/offset из query-параметров.
func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

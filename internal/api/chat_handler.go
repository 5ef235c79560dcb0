package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Fiberwise-AI/ia-chat-app/internal/chat"
	"github.com/Fiberwise-AI/ia-chat-app/internal/pipelines"
)

// SendChat обрабатывает сообщение чата.
// POST /api/v1/chat
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Message == "" {
		BadRequest(w, "message is required")
		return
	}

	sendReq := chat.SendRequest{
		Message:  req.Message,
		Pipeline: req.Pipeline,
	}

	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			BadRequest(w, "invalid session id")
			return
		}
		sendReq.SessionID = &id
	}

	result, err := h.chatSvc.Send(r.Context(), sendReq)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			BadRequest(w, err.Error())
		case errors.Is(err, pipelines.ErrPipelineNotFound):
			NotFound(w, err.Error())
		default:
			HandleRepoError(w, h.logger, err, "session not found")
		}
		return
	}

	Success(w, result)
}

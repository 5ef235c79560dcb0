package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Chat
	mux.Handle("POST /api/v1/chat", chain(http.HandlerFunc(h.SendChat)))

	// Sessions
	mux.Handle("GET /api/v1/sessions", chain(http.HandlerFunc(h.ListSessions)))
	mux.Handle("GET /api/v1/sessions/{id}", chain(http.HandlerFunc(h.GetSession)))
	mux.Handle("GET /api/v1/sessions/{id}/messages", chain(http.HandlerFunc(h.ListSessionMessages)))

	// Documents
	mux.Handle("GET /api/v1/sessions/{id}/documents", chain(http.HandlerFunc(h.ListSessionDocuments)))
	mux.Handle("POST /api/v1/sessions/{id}/documents", chain(http.HandlerFunc(h.UploadDocument)))

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/pipelines", chain(http.HandlerFunc(h.PublishPipeline)))
	mux.Handle("GET /api/v1/pipelines/{name}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("POST /api/v1/pipelines/{name}/runs", chain(http.HandlerFunc(h.RunPipeline)))
}

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// ListPipelines возвращает имена зарегистрированных pipeline.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()

	result := make([]PipelineSummary, len(names))
	for i, name := range names {
		result[i] = PipelineSummary{Name: name}
	}

	List(w, result, len(result))
}

// GetPipeline возвращает определение pipeline по имени.
// GET /api/v1/pipelines/{name}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	raw, err := h.registry.Raw(name)
	if err != nil {
		NotFound(w, "pipeline not found")
		return
	}

	Success(w, PipelineResponse{Name: name, Definition: raw})
}

// PublishPipeline валидирует определение, регистрирует его и сохраняет
// в БД, чтобы оно пережило рестарт.
// POST /api/v1/pipelines
func (h *Handler) PublishPipeline(w http.ResponseWriter, r *http.Request) {
	var req PublishPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Definition) == 0 {
		BadRequest(w, "definition is required")
		return
	}

	p, err := engine.Load(req.Definition)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if err := p.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.pipelineRepo.Upsert(r.Context(), p.ID, req.Definition); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// После записи в БД регистрация не может не пройти: определение
	// уже провалидировано
	if err := h.registry.Add(req.Definition); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, PipelineResponse{Name: p.ID, Definition: req.Definition})
}

// RunPipeline выполняет зарегистрированный pipeline с произвольным
// входом. Отладочная поверхность: история чата при этом не пишется.
// POST /api/v1/pipelines/{name}/runs
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	p, err := h.registry.Get(name)
	if err != nil {
		NotFound(w, "pipeline not found")
		return
	}

	// Пустое тело допустимо: запуск без входа
	var req RunPipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	result, err := h.runner.Run(r.Context(), p, h.execs, req.Input)
	if err != nil {
		// Частичный результат полезнее голой ошибки: отдаём статусы
		// и выходы успевших шагов вместе с текстами падений
		var runErr *engine.RunError
		if errors.As(err, &runErr) && runErr.Partial != nil {
			JSON(w, http.StatusUnprocessableEntity, DataResponse{Data: RunFromResult(runErr.Partial)})
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, RunFromResult(result))
}

package api

import (
	"log/slog"

	"github.com/Fiberwise-AI/ia-chat-app/internal/chat"
	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/pipelines"
	"github.com/Fiberwise-AI/ia-chat-app/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	chatSvc      *chat.Service
	sessionRepo  *repo.SessionRepo
	messageRepo  *repo.MessageRepo
	documentRepo *repo.DocumentRepo
	pipelineRepo *repo.PipelineRepo
	registry     *pipelines.Registry
	runner       *engine.Runner
	execs        engine.ExecutableSet
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	ChatService  *chat.Service
	SessionRepo  *repo.SessionRepo
	MessageRepo  *repo.MessageRepo
	DocumentRepo *repo.DocumentRepo
	PipelineRepo *repo.PipelineRepo
	Registry     *pipelines.Registry
	Runner       *engine.Runner
	Execs        engine.ExecutableSet
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		chatSvc:      cfg.ChatService,
		sessionRepo:  cfg.SessionRepo,
		messageRepo:  cfg.MessageRepo,
		documentRepo: cfg.DocumentRepo,
		pipelineRepo: cfg.PipelineRepo,
		registry:     cfg.Registry,
		runner:       cfg.Runner,
		execs:        cfg.Execs,
		logger:       cfg.Logger,
	}
}

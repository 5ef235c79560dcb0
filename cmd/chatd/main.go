// chatd — сервер чат-приложения.
//
// chatd:
//   - Обслуживает REST API и WebSocket /ws/chat
//   - Выполняет графовые pipelines поверх LLM-провайдера
//   - Публикует события запусков в RabbitMQ и раздаёт их WS-клиентам
//   - Чистит устаревшие сессии по расписанию
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Fiberwise-AI/ia-chat-app/internal/api"
	"github.com/Fiberwise-AI/ia-chat-app/internal/chat"
	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/events"
	"github.com/Fiberwise-AI/ia-chat-app/internal/janitor"
	"github.com/Fiberwise-AI/ia-chat-app/internal/llm"
	"github.com/Fiberwise-AI/ia-chat-app/internal/pipelines"
	"github.com/Fiberwise-AI/ia-chat-app/internal/repo"
	"github.com/Fiberwise-AI/ia-chat-app/internal/steps"
	"github.com/Fiberwise-AI/ia-chat-app/internal/telemetry"
	"github.com/Fiberwise-AI/ia-chat-app/internal/ws"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_http_requests_total",
		Help: "Total HTTP requests handled by chatd",
	})
)

// repoStore адаптирует репозитории к хранилищу шагов pipeline.
type repoStore struct {
	messages  *repo.MessageRepo
	documents *repo.DocumentRepo
}

func (s *repoStore) SessionMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	return s.messages.ListBySession(ctx, sessionID)
}

func (s *repoStore) SessionDocuments(ctx context.Context, sessionID uuid.UUID) ([]domain.Document, error) {
	return s.documents.ListBySession(ctx, sessionID)
}

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting chatd")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории
	sessionRepo := repo.NewSessionRepo(pool)
	messageRepo := repo.NewMessageRepo(pool)
	documentRepo := repo.NewDocumentRepo(pool)
	pipelineRepo := repo.NewPipelineRepo(pool)

	// Реестр pipeline: встроенные, затем каталог, затем БД
	registry, err := pipelines.NewRegistry(logger)
	if err != nil {
		logger.Error("failed to create pipeline registry", "error", err)
		os.Exit(1)
	}
	if dir := os.Getenv("PIPELINES_DIR"); dir != "" {
		if err := registry.LoadDir(dir); err != nil {
			logger.Error("failed to load pipelines dir", "dir", dir, "error", err)
			os.Exit(1)
		}
	}
	if err := registry.LoadStore(ctx, pipelineRepo); err != nil {
		logger.Warn("failed to load stored pipelines", "error", err)
	}

	// LLM-провайдер
	provider, err := llm.NewOpenAIProvider(llm.OpenAIConfig{Logger: logger})
	if err != nil {
		logger.Error("failed to create llm provider", "error", err)
		os.Exit(1)
	}
	logger.Info("llm provider ready", "provider", provider.Name())

	// Шаги pipeline
	execs := steps.DefaultRegistry(steps.Services{
		Store:  &repoStore{messages: messageRepo, documents: documentRepo},
		LLM:    provider,
		Logger: logger,
	})

	// RabbitMQ: транспорт событий между движком и WS-клиентами.
	// Без брокера сервер работает, но live-события не доставляются.
	var observer engine.Observer
	metricsObs := telemetry.NewMetricsObserver()
	hub := ws.NewHub(logger)

	mqConn, err := events.NewConnection(events.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, run events disabled", "error", err)
		observer = metricsObs.Observe
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := events.SetupTopology(mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher := events.NewPublisher(mqConn, logger)
		observer = engine.MultiObserver(metricsObs.Observe, publisher.Observer())

		consumer := events.NewConsumer(mqConn, logger, events.QueueWS, hub.HandleEvent)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("events consumer stopped", "error", err)
			}
		}()
	}

	go hub.Run(ctx)

	// Движок и сервис чата
	runner := engine.NewRunner(engine.Config{
		Logger:   logger,
		Observer: observer,
	})

	chatSvc := chat.NewService(chat.Config{
		Sessions: sessionRepo,
		Messages: messageRepo,
		Registry: registry,
		Runner:   runner,
		Execs:    execs,
		Logger:   logger,
	})

	// Janitor: уборка устаревших сессий
	jan, err := janitor.New(janitor.Config{
		Sessions:  sessionRepo,
		Logger:    logger,
		Retention: janitor.RetentionFromEnv(),
		CronExpr:  janitor.CronExprFromEnv(),
	})
	if err != nil {
		logger.Error("failed to create janitor", "error", err)
		os.Exit(1)
	}
	go jan.Run(ctx)

	// API handler
	handler := api.NewHandler(api.Config{
		ChatService:  chatSvc,
		SessionRepo:  sessionRepo,
		MessageRepo:  messageRepo,
		DocumentRepo: documentRepo,
		PipelineRepo: pipelineRepo,
		Registry:     registry,
		Runner:       runner,
		Execs:        execs,
		Logger:       logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// WebSocket
	mux.Handle("/ws/chat", ws.ChatHandler(hub, chatSvc, logger))

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

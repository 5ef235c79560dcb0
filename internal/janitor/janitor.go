package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const (
	// DefaultRetention — срок хранения неактивных сессий по умолчанию.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultCronExpr — расписание уборки по умолчанию: каждый день в 03:00.
	DefaultCronExpr = "0 3 * * *"
)

// SessionPruner удаляет сессии, неактивные дольше заданного порога.
// Реализуется repo.SessionRepo.
type SessionPruner interface {
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor периодически удаляет устаревшие сессии вместе с их
// сообщениями и документами.
type Janitor struct {
	sessions  SessionPruner
	logger    *slog.Logger
	retention time.Duration
	schedule  cron.Schedule
}

// Config — конфигурация Janitor.
type Config struct {
	Sessions SessionPruner
	Logger   *slog.Logger

	// Retention — срок хранения неактивных сессий (default: 30 суток).
	Retention time.Duration

	// CronExpr — расписание уборки (default: "0 3 * * *").
	CronExpr string
}

// New создаёт Janitor.
func New(cfg Config) (*Janitor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	expr := cfg.CronExpr
	if expr == "" {
		expr = DefaultCronExpr
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse janitor cron expression %q: %w", expr, err)
	}

	return &Janitor{
		sessions:  cfg.Sessions,
		logger:    logger,
		retention: retention,
		schedule:  schedule,
	}, nil
}

// RetentionFromEnv читает срок хранения из SESSION_RETENTION_DAYS.
func RetentionFromEnv() time.Duration {
	raw := os.Getenv("SESSION_RETENTION_DAYS")
	if raw == "" {
		return DefaultRetention
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return DefaultRetention
	}
	return time.Duration(days) * 24 * time.Hour
}

// CronExprFromEnv читает расписание уборки из JANITOR_CRON.
func CronExprFromEnv() string {
	if expr := os.Getenv("JANITOR_CRON"); expr != "" {
		return expr
	}
	return DefaultCronExpr
}

// Run выполняет уборку по расписанию до отмены контекста.
func (j *Janitor) Run(ctx context.Context) {
	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := j.Sweep(ctx); err != nil {
			j.logger.Error("session sweep failed", "error", err)
		}
	}
}

// Sweep удаляет сессии, неактивные дольше retention.
func (j *Janitor) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-j.retention)

	deleted, err := j.sessions.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete inactive sessions: %w", err)
	}

	if deleted > 0 {
		j.logger.Info("session sweep completed",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
		)
	}
	return nil
}

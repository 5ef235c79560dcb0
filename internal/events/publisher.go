package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// publishTimeout ограничивает время одной публикации из наблюдателя.
const publishTimeout = 5 * time.Second

// Publisher публикует события движка в брокер.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует одно событие. Ключ маршрутизации — тип события.
func (p *Publisher) Publish(ctx context.Context, event engine.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch := p.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	err = ch.PublishWithContext(
		ctx,
		ExchangeEvents,
		string(event.Type), // routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Debug("event published",
		"type", event.Type,
		"run_id", event.RunID,
		"step_id", event.StepID,
	)
	return nil
}

// Observer возвращает наблюдателя для engine.Runner.
//
// Callback движка вызывается синхронно из планировщика, поэтому
// публикация уходит в отдельную горутину: деградация брокера замедляет
// доставку событий, но не выполнение pipeline.
func (p *Publisher) Observer() engine.Observer {
	return func(event engine.Event) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()

			if err := p.Publish(ctx, event); err != nil {
				p.logger.Warn("event publish failed",
					"type", event.Type,
					"run_id", event.RunID,
					"error", err,
				)
			}
		}()
	}
}

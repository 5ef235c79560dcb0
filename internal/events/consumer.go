package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// Handler обрабатывает одно событие.
type Handler func(ctx context.Context, event engine.Event)

// Consumer читает события из очереди и передаёт их обработчику.
//
// События — уведомления, а не команды: битое или необработанное
// событие отбрасывается, без retry и DLQ.
type Consumer struct {
	conn    *Connection
	logger  *slog.Logger
	queue   string
	handler Handler
}

// NewConsumer создаёт consumer очереди событий.
func NewConsumer(conn *Connection, logger *slog.Logger, queue string, handler Handler) *Consumer {
	return &Consumer{
		conn:    conn,
		logger:  logger,
		queue:   queue,
		handler: handler,
	}
}

// Start потребляет события до отмены контекста.
// Переживает разрывы соединения через ReconnectNotify.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.setup()
		if err != nil {
			c.logger.Error("consumer setup failed", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}

		c.logger.Info("event consumer started", "queue", c.queue)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
			}
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	deliveries, err := ch.Consume(
		c.queue,
		"",    // consumer tag
		true,  // auto-ack: события не переигрываются
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			var event engine.Event
			if err := json.Unmarshal(raw.Body, &event); err != nil {
				c.logger.Error("malformed event dropped", "queue", c.queue, "error", err)
				continue
			}

			c.handler(ctx, event)
		}
	}
}

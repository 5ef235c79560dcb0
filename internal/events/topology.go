package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология брокера.
//
// Один topic-обменник; ключ маршрутизации — тип события (run.started,
// step.completed, ...). Очередь WebSocket-хаба подписана на всё;
// внешний потребитель может завести свою очередь с узким биндингом,
// например только step.failed.
const (
	// ExchangeEvents — обменник событий жизненного цикла.
	ExchangeEvents = "chat.events"

	// QueueWS — очередь WebSocket-хаба.
	QueueWS = "chat.events.ws"
)

// SetupTopology объявляет обменник и очередь хаба.
// Идемпотентна: повторное объявление с теми же параметрами — no-op.
func SetupTopology(conn *Connection) error {
	ch := conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	err := ch.ExchangeDeclare(
		ExchangeEvents, // name
		"topic",        // kind
		true,           // durable
		false,          // auto-delete
		false,          // internal
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}

	// События эфемерны: очередь не durable, протухшие события
	// WebSocket-клиентам не нужны.
	_, err = ch.QueueDeclare(
		QueueWS,
		false, // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": int32(60_000)},
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueWS, err)
	}

	for _, key := range []string{"run.*", "step.*"} {
		if err := ch.QueueBind(QueueWS, key, ExchangeEvents, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueWS, key, err)
		}
	}

	return nil
}

package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/telemetry"
)

// Frame — кадр, уходящий клиенту.
type Frame struct {
	// Type — вид кадра: response, event, error.
	Type string `json:"type"`

	// Data — полезная нагрузка кадра.
	Data any `json:"data,omitempty"`

	// Error — текст ошибки (для type=error).
	Error string `json:"error,omitempty"`
}

// Виды кадров.
const (
	FrameResponse = "response"
	FrameEvent    = "event"
	FrameError    = "error"
)

// Hub раздаёт события жизненного цикла всем подключённым клиентам.
//
// Вся бухгалтерия клиентов живёт в одной горутине Run; регистрация
// и рассылка сериализуются через каналы.
type Hub struct {
	logger *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	clients map[*Client]bool
}

// NewHub создаёт Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*Client]bool),
	}
}

// Run обслуживает клиентов до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.close()
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			telemetry.WSClientConnected()
			h.logger.Debug("ws client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				telemetry.WSClientDisconnected()
			}
			h.logger.Debug("ws client disconnected", "clients", len(h.clients))

		case payload := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Клиент не вычитывает — отключаем, не блокируя хаб
					delete(h.clients, client)
					client.close()
					telemetry.WSClientDisconnected()
				}
			}
		}
	}
}

// HandleEvent — events.Handler: заворачивает событие движка в кадр
// и рассылает всем клиентам.
func (h *Hub) HandleEvent(_ context.Context, event engine.Event) {
	payload, err := json.Marshal(Frame{Type: FrameEvent, Data: event})
	if err != nil {
		h.logger.Error("marshal event frame", "error", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("event dropped, broadcast queue full", "type", event.Type)
	}
}

package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Fiberwise-AI/ia-chat-app/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Сервис отдаётся фронтенду с другого origin в разработке
	CheckOrigin: func(*http.Request) bool { return true },
}

// ChatRequest — входящее сообщение клиента.
type ChatRequest struct {
	// SessionID — сессия для продолжения; пусто — новая сессия.
	SessionID string `json:"session_id,omitempty"`

	// Message — текст сообщения.
	Message string `json:"message"`

	// Pipeline — имя pipeline (опционально).
	Pipeline string `json:"pipeline,omitempty"`
}

// ChatHandler обслуживает /ws/chat.
//
// Каждое входящее сообщение проходит тот же сценарий, что и
// POST /api/v1/chat; события выполнения клиент получает отдельными
// кадрами через Hub.
func ChatHandler(hub *Hub, svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "error", err)
			return
		}

		client := newClient(conn)
		hub.register <- client
		defer func() { hub.unregister <- client }()

		go client.writePump()

		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				logger.Debug("ws client gone", "error", err)
				return
			}

			var req ChatRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				sendFrame(client, Frame{Type: FrameError, Error: "invalid request"})
				continue
			}

			result, err := handleChat(r.Context(), svc, req)
			if err != nil {
				logger.Warn("ws chat failed", "error", err)
				sendFrame(client, Frame{Type: FrameError, Error: err.Error()})
				continue
			}

			sendFrame(client, Frame{Type: FrameResponse, Data: result})
		}
	}
}

func handleChat(ctx context.Context, svc *chat.Service, req ChatRequest) (*chat.SendResult, error) {
	sendReq := chat.SendRequest{
		Message:  req.Message,
		Pipeline: req.Pipeline,
	}

	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			return nil, err
		}
		sendReq.SessionID = &id
	}

	return svc.Send(ctx, sendReq)
}

func sendFrame(client *Client, frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	client.Send(payload)
}

package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait — таймаут записи кадра.
	writeWait = 10 * time.Second

	// pongWait — сколько ждём pong от клиента.
	pongWait = 60 * time.Second

	// pingPeriod — период ping; должен быть меньше pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize — предел входящего сообщения.
	maxMessageSize = 64 * 1024

	// sendBuffer — буфер исходящих кадров клиента.
	sendBuffer = 32
)

// Client — одно WebSocket-подключение.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	closed chan struct{}
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		closed: make(chan struct{}),
	}
}

// close помечает клиента закрытым. Идемпотентна со стороны хаба:
// вызывается только из горутины Run.
func (c *Client) close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// Send ставит кадр в очередь клиента. false — клиент закрыт или
// очередь переполнена.
func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// writePump пишет кадры из очереди в соединение и пингует клиента.
// Ровно одна горутина на клиента: websocket.Conn не допускает
// конкурентной записи.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

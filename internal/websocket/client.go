package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего кадра
	maxMessageSize = 64 * 1024
)

// FrameHandler разбирает входящие кадры конкретного протокола
// (уведомления, чат). Ошибка уходит клиенту типизированным error-кадром.
type FrameHandler interface {
	HandleFrame(client *Client, data []byte) error
}

type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Groups map[string]bool
	Hub    *Hub
	mu     sync.RWMutex
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Groups: make(map[string]bool),
		Hub:    hub,
	}
}

// ReadPump читает кадры клиента и отдаёт их handler'у.
// При любом выходе (в том числе аварийном разрыве) соединение
// синхронно снимается со всех групп через unregister.
func (c *Client) ReadPump(handler FrameHandler) {
	defer func() {
		c.detach()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if handler == nil {
			continue
		}
		if err := handler.HandleFrame(c, data); err != nil {
			log.Printf("Error handling frame from %s: %v", c.UserID, err)
			c.SendError(err.Error())
		}
	}
}

// detach снимает соединение с хаба. Остановленный хаб уже не читает
// unregister, поэтому отправка ограничена временем жизни хаба —
// иначе каждая живая горутина чтения зависла бы на shutdown.
func (c *Client) detach() {
	select {
	case c.Hub.unregister <- c:
	case <-c.Hub.ctx.Done():
	}
}

// WritePump отправляет кадры клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON кладёт кадр в очередь клиента; переполненная очередь — drop
func (c *Client) SendJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case c.Send <- payload:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(message string) {
	c.SendJSON(map[string]interface{}{
		"type":      "error",
		"message":   message,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Client) InGroup(group string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Groups[group]
}

// GroupNames возвращает снимок групп соединения
func (c *Client) GroupNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.Groups))
	for group := range c.Groups {
		names = append(names, group)
	}
	return names
}

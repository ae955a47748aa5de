package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thereayou/classpulse/internal/middleware"
	"github.com/thereayou/classpulse/internal/services"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

// BroadcastSocketHandler — административный канал объявлений.
// Подключаться могут только администраторы; всё остальное отклоняется
// до апгрейда.
type BroadcastSocketHandler struct {
	hub        *ws.Hub
	store      services.Store
	dispatcher *services.Dispatcher
	upgrader   websocket.Upgrader
}

func NewBroadcastSocketHandler(hub *ws.Hub, store services.Store, dispatcher *services.Dispatcher) *BroadcastSocketHandler {
	return &BroadcastSocketHandler{
		hub:        hub,
		store:      store,
		dispatcher: dispatcher,
		upgrader:   newUpgrader(),
	}
}

func (h *BroadcastSocketHandler) Handle(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	uid := userID.(uuid.UUID)

	user, err := h.store.GetUser(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !user.IsStaff() {
		c.JSON(http.StatusForbidden, gin.H{"error": "staff only"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, uid)
	h.hub.Register(client)
	h.hub.Join(ws.BroadcastGroup, client)

	go client.WritePump()
	go client.ReadPump(h)
}

type broadcastFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (h *BroadcastSocketHandler) HandleFrame(client *ws.Client, data []byte) error {
	var frame broadcastFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ws.ErrInvalidFrame
	}

	switch frame.Type {
	case "broadcast_notification":
		message := strings.TrimSpace(frame.Message)
		if message == "" {
			return ws.ErrInvalidFrame
		}

		h.dispatcher.SystemAnnouncement(context.Background(), message, nil)

		return client.SendJSON(map[string]interface{}{
			"type":      "broadcast_sent",
			"message":   message,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})

	default:
		return fmt.Errorf("%w: %s", ws.ErrUnknownType, frame.Type)
	}
}

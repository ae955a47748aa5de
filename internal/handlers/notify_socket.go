package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thereayou/classpulse/internal/middleware"
	"github.com/thereayou/classpulse/internal/services"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: Проверить origin в prod
			return true
		},
	}
}

// NotifySocketHandler — персональный канал уведомлений. Подключённый
// клиент автоматически попадает в свою user-группу и сразу получает
// счётчик непрочитанных.
type NotifySocketHandler struct {
	hub        *ws.Hub
	store      services.Store
	dispatcher *services.Dispatcher
	upgrader   websocket.Upgrader
}

func NewNotifySocketHandler(hub *ws.Hub, store services.Store, dispatcher *services.Dispatcher) *NotifySocketHandler {
	return &NotifySocketHandler{
		hub:        hub,
		store:      store,
		dispatcher: dispatcher,
		upgrader:   newUpgrader(),
	}
}

func (h *NotifySocketHandler) Handle(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, userID.(uuid.UUID))
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h)

	h.greet(c.Request.Context(), client)
}

// greet пишет приветственные кадры напрямую в очередь соединения:
// регистрация в хабе асинхронна, групповая доставка могла бы её обогнать
func (h *NotifySocketHandler) greet(ctx context.Context, client *ws.Client) {
	client.SendJSON(map[string]interface{}{
		"type":      "connection_established",
		"message":   "Connected to notification service",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	count, err := h.store.UnreadCount(ctx, client.UserID)
	if err != nil {
		log.Printf("Unread count for %s failed: %v", client.UserID, err)
		return
	}
	client.SendJSON(map[string]interface{}{
		"type":         "unread_count",
		"unread_count": count,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

type notifyFrame struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
	Limit          int    `json:"limit"`
}

func (h *NotifySocketHandler) HandleFrame(client *ws.Client, data []byte) error {
	var frame notifyFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ws.ErrInvalidFrame
	}

	ctx := context.Background()

	switch frame.Type {
	case "mark_as_read":
		id, err := uuid.Parse(frame.NotificationID)
		if err != nil {
			return ws.ErrInvalidFrame
		}
		if err := h.store.MarkNotificationRead(ctx, id, client.UserID); err != nil {
			return err
		}
		n, err := h.store.GetNotification(ctx, id, client.UserID)
		if err != nil {
			return err
		}
		h.dispatcher.NotifyRead(ctx, n)
		return nil

	case "mark_all_as_read":
		updated, err := h.store.MarkAllNotificationsRead(ctx, client.UserID)
		if err != nil {
			return err
		}
		h.dispatcher.NotifyAllRead(ctx, client.UserID, updated)
		return nil

	case "get_recent_notifications":
		limit := frame.Limit
		if limit <= 0 || limit > 50 {
			limit = 10
		}
		notifications, err := h.store.ListNotifications(ctx, client.UserID, false, limit, 0)
		if err != nil {
			return err
		}

		payloads := make([]map[string]interface{}, len(notifications))
		deliveredAt := time.Now()
		for i := range notifications {
			payloads[i] = services.NotificationPayload(&notifications[i])
			// Отмечаем live-доставку непрочитанных
			if !notifications[i].IsRead {
				if err := h.store.StampDelivered(ctx, notifications[i].ID, client.UserID, deliveredAt); err != nil {
					log.Printf("Delivery stamp for %s failed: %v", notifications[i].ID, err)
				}
			}
		}

		return client.SendJSON(map[string]interface{}{
			"type":          "recent_notifications",
			"notifications": payloads,
			"timestamp":     time.Now().UTC().Format(time.RFC3339),
		})

	case "get_unread_count":
		count, err := h.store.UnreadCount(ctx, client.UserID)
		if err != nil {
			return err
		}
		return client.SendJSON(map[string]interface{}{
			"type":         "unread_count",
			"unread_count": count,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})

	default:
		return fmt.Errorf("%w: %s", ws.ErrUnknownType, frame.Type)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thereayou/classpulse/internal/middleware"
	"github.com/thereayou/classpulse/internal/models"
	"github.com/thereayou/classpulse/internal/services"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

// ChatSocketHandler — чат комнаты. Доступ проверяется ДО апгрейда:
// не-участник активной комнаты получает 403 обычным HTTP-ответом.
type ChatSocketHandler struct {
	hub      *ws.Hub
	rooms    *services.RoomService
	store    services.Store
	upgrader websocket.Upgrader
}

func NewChatSocketHandler(hub *ws.Hub, rooms *services.RoomService, store services.Store) *ChatSocketHandler {
	return &ChatSocketHandler{
		hub:      hub,
		rooms:    rooms,
		store:    store,
		upgrader: newUpgrader(),
	}
}

func (h *ChatSocketHandler) Handle(c *gin.Context) {
	userID, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	uid := userID.(uuid.UUID)

	roomID, err := uuid.Parse(c.Query("room_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, allowed, err := h.rooms.CanAccess(c.Request.Context(), roomID, uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a participant of this room"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.hub, conn, uid)
	h.hub.Register(client)
	h.hub.Join(ws.RoomGroup(roomID), client)

	user, err := h.store.GetUser(context.Background(), uid)
	if err == nil {
		h.announce(roomID, fmt.Sprintf("%s has joined the chat.", user.Username), models.MessageJoin)
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h)
		h.afterDisconnect(room, uid)
	}()
}

type chatFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (h *ChatSocketHandler) HandleFrame(client *ws.Client, data []byte) error {
	var frame chatFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ws.ErrInvalidFrame
	}

	switch frame.Type {
	case "chat_message":
		content := strings.TrimSpace(frame.Content)
		if content == "" {
			return ws.ErrInvalidFrame
		}

		roomID, ok := roomOf(client)
		if !ok {
			return ws.ErrUnauthorized
		}

		senderID := client.UserID
		msg := &models.Message{
			RoomID:      roomID,
			SenderID:    &senderID,
			Content:     content,
			MessageType: models.MessageText,
			CreatedAt:   time.Now(),
		}
		if err := h.store.SaveMessage(context.Background(), msg); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]interface{}{
			"type": "chat_message",
			"message": map[string]interface{}{
				"id":         msg.ID,
				"sender_id":  msg.SenderID,
				"content":    msg.Content,
				"created_at": msg.CreatedAt,
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		h.hub.Send(ws.RoomGroup(roomID), payload)
		return nil

	default:
		return fmt.Errorf("%w: %s", ws.ErrUnknownType, frame.Type)
	}
}

// afterDisconnect: разрыв хоста закрывает комнату, разрыв участника
// оставляет членство, но фиксирует уход в истории
func (h *ChatSocketHandler) afterDisconnect(room *models.Room, userID uuid.UUID) {
	ctx := context.Background()

	if room.CreatorID == userID {
		if err := h.store.DeactivateRoom(ctx, room.ID); err != nil {
			log.Printf("Deactivate room %s after host disconnect: %v", room.ID, err)
		}
		h.announce(room.ID, "Host disconnected. Room closed.", models.MessageSystem)
		return
	}

	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		return
	}
	h.announce(room.ID, fmt.Sprintf("%s has left the chat.", user.Username), models.MessageLeave)
}

// announce персистит системное сообщение и рассылает его в комнату
func (h *ChatSocketHandler) announce(roomID uuid.UUID, text, messageType string) {
	msg := &models.Message{
		RoomID:      roomID,
		Content:     text,
		MessageType: messageType,
		CreatedAt:   time.Now(),
	}
	if err := h.store.SaveMessage(context.Background(), msg); err != nil {
		log.Printf("System message save failed: %v", err)
	}

	frame, err := json.Marshal(map[string]interface{}{
		"type":      "system",
		"message":   text,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	h.hub.Send(ws.RoomGroup(roomID), frame)
}

// roomOf достаёт единственную room-группу клиента
func roomOf(client *ws.Client) (uuid.UUID, bool) {
	for _, group := range client.GroupNames() {
		if id, ok := strings.CutPrefix(group, "room:"); ok {
			roomID, err := uuid.Parse(id)
			if err != nil {
				continue
			}
			return roomID, true
		}
	}
	return uuid.Nil, false
}

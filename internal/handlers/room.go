package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/classpulse/internal/handlers/dto"
	"github.com/thereayou/classpulse/internal/middleware"
	"github.com/thereayou/classpulse/internal/models"
	"github.com/thereayou/classpulse/internal/services"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

type RoomHandler struct {
	rooms *services.RoomService
	store services.Store
	hub   *ws.Hub
}

func NewRoomHandler(rooms *services.RoomService, store services.Store, hub *ws.Hub) *RoomHandler {
	return &RoomHandler{rooms: rooms, store: store, hub: hub}
}

// ListRooms отдаёт активные комнаты с количеством подключённых
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListActiveRooms(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]gin.H, len(rooms))
	for i, room := range rooms {
		online := h.hub.GroupUsers(ws.RoomGroup(room.ID))
		response[i] = formatRoomResponse(&room)
		response[i]["online_count"] = len(online)
	}

	c.JSON(http.StatusOK, gin.H{"rooms": response})
}

// CreateRoom создает новую комнату (только преподаватели и администраторы)
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	creator, err := h.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	roomType := req.RoomType
	if roomType == "" {
		roomType = "general"
	}
	autoApprove := true
	if req.AutoApprove != nil {
		autoApprove = *req.AutoApprove
	}

	room := &models.Room{
		Name:            req.Name,
		Description:     req.Description,
		RoomType:        roomType,
		CreatorID:       userID,
		IsActive:        true,
		AutoApprove:     autoApprove,
		MaxParticipants: req.MaxParticipants,
		CreatedAt:       time.Now(),
	}

	if err := h.rooms.CreateRoom(c.Request.Context(), creator, room); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, formatRoomResponse(room))
}

// JoinRoom подаёт заявку на вступление. При авто-approve пользователь
// сразу становится участником.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req dto.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.rooms.RequestJoin(c.Request.Context(), roomID, userID, req.Message)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     request.Status,
		"request_id": request.ID,
	})
}

// ApproveRequest — хост принимает pending-заявку
func (h *RoomHandler) ApproveRequest(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req dto.ProcessRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requesterID, _ := uuid.Parse(req.UserID)

	if _, err := h.rooms.ApproveRequest(c.Request.Context(), roomID, requesterID, userID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request approved"})
}

// DenyRequest — хост отклоняет pending-заявку
func (h *RoomHandler) DenyRequest(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	var req dto.ProcessRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	requesterID, _ := uuid.Parse(req.UserID)

	if _, err := h.rooms.DenyRequest(c.Request.Context(), roomID, requesterID, userID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request rejected"})
}

// LeaveRoom — выход из комнаты. Уход хоста закрывает комнату.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := h.rooms.Leave(c.Request.Context(), roomID, userID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// RemoveParticipant — хост исключает участника
func (h *RoomHandler) RemoveParticipant(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	targetID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := h.rooms.RemoveParticipant(c.Request.Context(), roomID, targetID, userID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "participant removed"})
}

// EndMeeting — хост завершает встречу, комната удаляется со всей историей
func (h *RoomHandler) EndMeeting(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	if err := h.rooms.EndMeeting(c.Request.Context(), roomID, userID); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "meeting ended"})
}

// GetMessages — история комнаты, доступна только участникам
func (h *RoomHandler) GetMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	_, allowed, err := h.rooms.CanAccess(c.Request.Context(), roomID, userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a participant of this room"})
		return
	}

	messages, err := h.store.RoomMessages(c.Request.Context(), roomID, 100)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]gin.H, len(messages))
	for i, msg := range messages {
		response[i] = gin.H{
			"id":           msg.ID,
			"sender_id":    msg.SenderID,
			"content":      msg.Content,
			"message_type": msg.MessageType,
			"created_at":   msg.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{"messages": response})
}

// PendingRequests — список заявок комнаты, только для хоста
func (h *RoomHandler) PendingRequests(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	room, err := h.store.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if room.CreatorID != userID {
		moderator, err := h.store.IsModerator(c.Request.Context(), roomID, userID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !moderator {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the host can view requests"})
			return
		}
	}

	requests, err := h.store.PendingRequests(c.Request.Context(), roomID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": formatRequests(requests)})
}

// MyRequests — заявки текущего пользователя по всем комнатам
func (h *RoomHandler) MyRequests(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	requests, err := h.store.UserJoinRequests(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": formatRequests(requests)})
}

func formatRequests(requests []models.JoinRequest) []gin.H {
	out := make([]gin.H, len(requests))
	for i, r := range requests {
		out[i] = gin.H{
			"id":           r.ID,
			"room_id":      r.RoomID,
			"user_id":      r.UserID,
			"status":       r.Status,
			"message":      r.Message,
			"created_at":   r.CreatedAt,
			"processed_at": r.ProcessedAt,
		}
	}
	return out
}

func formatRoomResponse(room *models.Room) gin.H {
	return gin.H{
		"id":               room.ID,
		"name":             room.Name,
		"description":      room.Description,
		"room_type":        room.RoomType,
		"creator_id":       room.CreatorID,
		"is_active":        room.IsActive,
		"auto_approve":     room.AutoApprove,
		"max_participants": room.MaxParticipants,
		"created_at":       room.CreatedAt,
	}
}

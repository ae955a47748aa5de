package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/classpulse/internal/middleware"
	"github.com/thereayou/classpulse/internal/services"
)

type NotificationHandler struct {
	store      services.Store
	dispatcher *services.Dispatcher
}

func NewNotificationHandler(store services.Store, dispatcher *services.Dispatcher) *NotificationHandler {
	return &NotificationHandler{store: store, dispatcher: dispatcher}
}

// List отдаёт уведомления получателя, новые первыми.
// ?unread=true фильтрует непрочитанные, ?limit и ?offset — пагинация.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	unreadOnly := c.Query("unread") == "true"
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	notifications, err := h.store.ListNotifications(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	response := make([]map[string]interface{}, len(notifications))
	for i := range notifications {
		response[i] = services.NotificationPayload(&notifications[i])
	}

	c.JSON(http.StatusOK, gin.H{"notifications": response})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	count, err := h.store.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead помечает уведомление прочитанным и рассылает
// notification_updated по остальным соединениям получателя
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.store.MarkNotificationRead(c.Request.Context(), id, userID); err != nil {
		abortWithError(c, err)
		return
	}

	n, err := h.store.GetNotification(c.Request.Context(), id, userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.dispatcher.NotifyRead(c.Request.Context(), n)

	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	updated, err := h.store.MarkAllNotificationsRead(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.dispatcher.NotifyAllRead(c.Request.Context(), userID, updated)

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	if err := h.store.DeleteNotification(c.Request.Context(), id, userID); err != nil {
		abortWithError(c, err)
		return
	}
	h.dispatcher.NotifyDeleted(c.Request.Context(), userID, id)

	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/thereayou/classpulse/internal/handlers"
	"github.com/thereayou/classpulse/internal/middleware"
	jwtauth "github.com/thereayou/classpulse/pkg/auth"
)

type Handlers struct {
	Auth            *handlers.AuthHandler
	Room            *handlers.RoomHandler
	Notification    *handlers.NotificationHandler
	NotifySocket    *handlers.NotifySocketHandler
	ChatSocket      *handlers.ChatSocketHandler
	BroadcastSocket *handlers.BroadcastSocketHandler
}

func APIEndpoints(r *gin.Engine, h *Handlers, jwtMgr *jwtauth.JWTManager, rdb *redis.Client) {
	// Auth endpoints
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
	}

	// API endpoints
	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtMgr, rdb))
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("", h.Room.ListRooms)
			rooms.POST("", h.Room.CreateRoom)
			rooms.POST("/:id/join", h.Room.JoinRoom)
			rooms.POST("/:id/approve", h.Room.ApproveRequest)
			rooms.POST("/:id/deny", h.Room.DenyRequest)
			rooms.POST("/:id/leave", h.Room.LeaveRoom)
			rooms.DELETE("/:id/participants/:user_id", h.Room.RemoveParticipant)
			rooms.DELETE("/:id", h.Room.EndMeeting)
			rooms.GET("/:id/messages", h.Room.GetMessages)
			rooms.GET("/:id/requests", h.Room.PendingRequests)
		}
		api.GET("/my-requests", h.Room.MyRequests)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.Notification.List)
			notifications.GET("/unread-count", h.Notification.UnreadCount)
			notifications.POST("/:id/read", h.Notification.MarkRead)
			notifications.POST("/read-all", h.Notification.MarkAllRead)
			notifications.DELETE("/:id", h.Notification.Delete)
		}
	}

	// WebSocket endpoints: токен приходит query-параметром
	wsGroup := r.Group("/ws")
	wsGroup.Use(middleware.WSAuthMiddleware(jwtMgr, rdb))
	{
		wsGroup.GET("/notifications", h.NotifySocket.Handle)
		wsGroup.GET("/chat", h.ChatSocket.Handle)
		wsGroup.GET("/broadcast", h.BroadcastSocket.Handle)
	}
}

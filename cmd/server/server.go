package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/thereayou/classpulse/internal/database"
	"github.com/thereayou/classpulse/internal/handlers"
	"github.com/thereayou/classpulse/internal/services"
	ws "github.com/thereayou/classpulse/internal/websocket"
	"github.com/thereayou/classpulse/pkg/auth"
)

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub

	broadcaster *ws.RedisBroadcaster
	cleanup     *services.Cleanup
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(
		os.Getenv("JWT_SECRET"),
		24*time.Hour,
	)

	hub := ws.NewHub()
	go hub.Run()

	// Через Redis pub/sub фан-аут работает между несколькими процессами;
	// без флага все доставки остаются in-process
	var sender services.GroupSender = hub
	var broadcaster *ws.RedisBroadcaster
	if os.Getenv("BROADCAST_REDIS") == "true" {
		broadcaster = ws.NewRedisBroadcaster(hub, rdb)
		go broadcaster.Run()
		sender = broadcaster
	}

	dispatcher := services.NewDispatcher(dbConn, sender)
	roomService := services.NewRoomService(dbConn, dispatcher, sender)

	cleanup := services.NewCleanup(dbConn, 30*24*time.Hour, time.Hour)
	go cleanup.Run()

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb, dispatcher)
	roomH := handlers.NewRoomHandler(roomService, dbConn, hub)
	notificationH := handlers.NewNotificationHandler(dbConn, dispatcher)
	notifySocketH := handlers.NewNotifySocketHandler(hub, dbConn, dispatcher)
	chatSocketH := handlers.NewChatSocketHandler(hub, roomService, dbConn)
	broadcastSocketH := handlers.NewBroadcastSocketHandler(hub, dbConn, dispatcher)

	router := gin.Default()
	APIEndpoints(router, &Handlers{
		Auth:            authH,
		Room:            roomH,
		Notification:    notificationH,
		NotifySocket:    notifySocketH,
		ChatSocket:      chatSocketH,
		BroadcastSocket: broadcastSocketH,
	}, jwtMgr, rdb)

	return &Server{
		Router:      router,
		DB:          dbConn,
		Redis:       rdb,
		JWTManager:  jwtMgr,
		Hub:         hub,
		broadcaster: broadcaster,
		cleanup:     cleanup,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		log.Fatalf("Server run error: %v", err)
	}
}

func (s *Server) Shutdown() {
	if s.broadcaster != nil {
		s.broadcaster.Stop()
	}
	s.cleanup.Stop()
	s.Hub.Stop()
}

package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/classpulse/internal/models"
)

// Store — персистентность сервиса. Реализуется database.Database (Postgres);
// тесты подставляют in-memory реализацию.
//
// Методы-переходы (RequestJoin, ApproveJoin, RejectJoin) обязаны выполнять
// все свои проверки и записи в одной транзакции: два конкурентных запроса
// не должны пройти проверку вместимости одновременно.
type Store interface {
	// Пользователи
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	Admins(ctx context.Context) ([]models.User, error)

	// Комнаты
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListActiveRooms(ctx context.Context) ([]models.Room, error)
	DeactivateRoom(ctx context.Context, id uuid.UUID) error
	DeleteRoomCascade(ctx context.Context, id uuid.UUID) error

	// Членство
	RequestJoin(ctx context.Context, roomID, userID uuid.UUID, message string) (*models.JoinRequest, error)
	ApproveJoin(ctx context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error)
	RejectJoin(ctx context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error)
	DeactivateParticipant(ctx context.Context, roomID, userID uuid.UUID) error
	IsActiveParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	IsModerator(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ActiveParticipants(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error)
	PendingRequests(ctx context.Context, roomID uuid.UUID) ([]models.JoinRequest, error)
	UserJoinRequests(ctx context.Context, userID uuid.UUID) ([]models.JoinRequest, error)

	// Сообщения
	SaveMessage(ctx context.Context, msg *models.Message) error
	RoomMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)

	// Уведомления
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error)
	ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	DeleteNotification(ctx context.Context, id, recipientID uuid.UUID) error
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
	StampDelivered(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error
	PurgeNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GroupSender — то, что сервисам нужно от broadcaster'а: доставить кадр
// всем живым соединениям группы. Ошибок нет: доставка best-effort.
type GroupSender interface {
	Send(group string, payload []byte)
}

package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/classpulse/internal/models"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

// Входящие доменные события от CRUD-коллабораторов. Каждый их
// транзакционный write зовёт сюда явно — никаких скрытых хуков,
// граф зависимостей виден по call sites.

func (d *Dispatcher) ResourceUploaded(ctx context.Context, actorID, resourceID uuid.UUID, title, resourceType, subject string, recipients []uuid.UUID) []*models.Notification {
	target := &models.TargetRef{Kind: models.TargetResource, ID: resourceID, Name: title}
	return d.DispatchBulk(ctx, recipients, "uploaded a resource", &actorID, target, models.NotificationResource, map[string]interface{}{
		"resource_title": title,
		"resource_type":  resourceType,
		"subject":        subject,
	})
}

func (d *Dispatcher) EventCreated(ctx context.Context, actorID, eventID uuid.UUID, title, location string, startsAt time.Time, recipients []uuid.UUID) []*models.Notification {
	target := &models.TargetRef{Kind: models.TargetEvent, ID: eventID, Name: title}
	return d.DispatchBulk(ctx, recipients, "created an event", &actorID, target, models.NotificationEvent, map[string]interface{}{
		"event_title": title,
		"event_date":  startsAt.UTC().Format(time.RFC3339),
		"location":    location,
	})
}

// UserRegistered уведомляет админов о новой регистрации
func (d *Dispatcher) UserRegistered(ctx context.Context, newUser *models.User) {
	admins, err := d.store.Admins(ctx)
	if err != nil {
		log.Printf("Admins lookup failed: %v", err)
		return
	}
	for _, admin := range admins {
		if admin.ID == newUser.ID {
			continue
		}
		actorID := newUser.ID
		if _, err := d.Dispatch(ctx, admin.ID, "registered on the platform", &actorID, nil, models.NotificationUser, map[string]interface{}{
			"user_role":         newUser.Role,
			"registration_date": newUser.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			log.Printf("Registration notification to %s failed: %v", admin.ID, err)
		}
	}
}

// ChatJoinRequest — хосту комнаты о новой заявке
func (d *Dispatcher) ChatJoinRequest(ctx context.Context, room *models.Room, requester *models.User) (*models.Notification, error) {
	target := &models.TargetRef{Kind: models.TargetRoom, ID: room.ID, Name: room.Name}
	return d.Dispatch(ctx, room.CreatorID, "requested to join", &requester.ID, target, models.NotificationChat, map[string]interface{}{
		"room_name":      room.Name,
		"room_id":        room.ID,
		"requester_name": requester.Username,
		"action_type":    "join_request",
	})
}

// ChatJoinApproved — заявителю об одобрении
func (d *Dispatcher) ChatJoinApproved(ctx context.Context, room *models.Room, approvedID, actorID uuid.UUID) (*models.Notification, error) {
	target := &models.TargetRef{Kind: models.TargetRoom, ID: room.ID, Name: room.Name}
	return d.Dispatch(ctx, approvedID, "approved your request to join", &actorID, target, models.NotificationChat, map[string]interface{}{
		"room_name":   room.Name,
		"room_id":     room.ID,
		"action_type": "join_approved",
	})
}

// ChatJoinRejected — заявителю об отказе
func (d *Dispatcher) ChatJoinRejected(ctx context.Context, room *models.Room, rejectedID, actorID uuid.UUID) (*models.Notification, error) {
	target := &models.TargetRef{Kind: models.TargetRoom, ID: room.ID, Name: room.Name}
	return d.Dispatch(ctx, rejectedID, "rejected your request to join", &actorID, target, models.NotificationChat, map[string]interface{}{
		"room_name":   room.Name,
		"room_id":     room.ID,
		"action_type": "join_rejected",
	})
}

func (d *Dispatcher) PrivateMessageSent(ctx context.Context, senderID, recipientID, messageID uuid.UUID, preview string) (*models.Notification, error) {
	target := &models.TargetRef{Kind: models.TargetMessage, ID: messageID}
	return d.Dispatch(ctx, recipientID, "sent you a private message", &senderID, target, models.NotificationChat, map[string]interface{}{
		"preview":     preview,
		"action_type": "private_message",
	})
}

// SystemAnnouncement рассылает объявление. С пустым списком получателей
// уходит только эфемерный кадр в admin-broadcast, без персистентных записей.
func (d *Dispatcher) SystemAnnouncement(ctx context.Context, message string, recipients []uuid.UUID) {
	if len(recipients) == 0 {
		frame, err := json.Marshal(map[string]interface{}{
			"type":      "broadcast_message",
			"message":   message,
			"timestamp": now(),
		})
		if err != nil {
			log.Printf("Announcement marshal failed: %v", err)
			return
		}
		d.sender.Send(ws.BroadcastGroup, frame)
		return
	}

	for _, recipientID := range recipients {
		if _, err := d.Dispatch(ctx, recipientID, message, nil, nil, models.NotificationSystem, nil); err != nil {
			log.Printf("Announcement to %s failed: %v", recipientID, err)
		}
	}
}

package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/thereayou/classpulse/internal/models"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

// Dispatcher превращает доменный факт в (а) строку в notifications и
// (б) best-effort push в персональную группу получателя.
// Порядок жёсткий: сначала запись, потом доставка — упавший push
// никогда не теряет факт.
type Dispatcher struct {
	store  Store
	sender GroupSender
}

func NewDispatcher(store Store, sender GroupSender) *Dispatcher {
	return &Dispatcher{store: store, sender: sender}
}

func (d *Dispatcher) Dispatch(ctx context.Context, recipientID uuid.UUID, verb string, actorID *uuid.UUID, target *models.TargetRef, kind string, data map[string]interface{}) (*models.Notification, error) {
	if verb == "" {
		return nil, ErrEmptyVerb
	}
	if len(verb) > 100 {
		verb = verb[:100]
	}
	if kind == "" {
		kind = models.NotificationOther
	}

	raw := datatypes.JSON(`{}`)
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = datatypes.JSON(b)
	}

	n := &models.Notification{
		RecipientID:      recipientID,
		ActorID:          actorID,
		Verb:             verb,
		NotificationType: kind,
		Data:             raw,
		CreatedAt:        time.Now(),
	}
	n.SetTarget(target)

	if err := d.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	d.pushNew(ctx, n)
	return n, nil
}

// DispatchBulk применяет Dispatch к каждому получателю; отказ по одному
// не блокирует остальных
func (d *Dispatcher) DispatchBulk(ctx context.Context, recipients []uuid.UUID, verb string, actorID *uuid.UUID, target *models.TargetRef, kind string, data map[string]interface{}) []*models.Notification {
	created := make([]*models.Notification, 0, len(recipients))
	for _, recipientID := range recipients {
		n, err := d.Dispatch(ctx, recipientID, verb, actorID, target, kind, data)
		if err != nil {
			log.Printf("Dispatch to %s failed: %v", recipientID, err)
			continue
		}
		created = append(created, n)
	}
	return created
}

// NotifyRead проталкивает notification_updated открытым клиентам владельца,
// чтобы они не опрашивали сервер
func (d *Dispatcher) NotifyRead(ctx context.Context, n *models.Notification) {
	d.send(n.RecipientID, map[string]interface{}{
		"type":         "notification_updated",
		"notification": NotificationPayload(n),
		"timestamp":    now(),
	})
	d.PushUnreadCount(ctx, n.RecipientID)
}

func (d *Dispatcher) NotifyAllRead(ctx context.Context, recipientID uuid.UUID, updated int64) {
	d.send(recipientID, map[string]interface{}{
		"type": "bulk_notification_update",
		"update_data": map[string]interface{}{
			"action":        "mark_all_read",
			"updated_count": updated,
		},
		"timestamp": now(),
	})
	d.PushUnreadCount(ctx, recipientID)
}

func (d *Dispatcher) NotifyDeleted(ctx context.Context, recipientID, notificationID uuid.UUID) {
	d.send(recipientID, map[string]interface{}{
		"type":            "notification_deleted",
		"notification_id": notificationID,
		"timestamp":       now(),
	})
	d.PushUnreadCount(ctx, recipientID)
}

// PushUnreadCount шлёт владельцу актуальный счётчик непрочитанных
func (d *Dispatcher) PushUnreadCount(ctx context.Context, recipientID uuid.UUID) {
	count, err := d.store.UnreadCount(ctx, recipientID)
	if err != nil {
		log.Printf("Unread count for %s failed: %v", recipientID, err)
		return
	}
	d.send(recipientID, map[string]interface{}{
		"type":         "unread_count",
		"unread_count": count,
		"timestamp":    now(),
	})
}

func (d *Dispatcher) pushNew(ctx context.Context, n *models.Notification) {
	d.send(n.RecipientID, map[string]interface{}{
		"type":         "new_notification",
		"notification": NotificationPayload(n),
		"timestamp":    now(),
	})
	d.PushUnreadCount(ctx, n.RecipientID)
}

func (d *Dispatcher) send(recipientID uuid.UUID, frame map[string]interface{}) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Frame marshal failed: %v", err)
		return
	}
	d.sender.Send(ws.UserGroup(recipientID), payload)
}

// NotificationPayload — wire-представление уведомления
func NotificationPayload(n *models.Notification) map[string]interface{} {
	payload := map[string]interface{}{
		"id":                n.ID,
		"verb":              n.Verb,
		"notification_type": n.NotificationType,
		"is_read":           n.IsRead,
		"created_at":        n.CreatedAt,
		"data":              json.RawMessage(n.Data),
	}
	if n.ActorID != nil {
		payload["actor_id"] = *n.ActorID
	}
	if target := n.Target(); target != nil {
		payload["target"] = map[string]interface{}{
			"type":         string(target.Kind),
			"id":           target.ID,
			"display_name": target.DisplayName(),
			"url":          target.URL(),
		}
	}
	return payload
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

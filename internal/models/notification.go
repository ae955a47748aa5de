package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"time"
)

const (
	NotificationResource = "resource"
	NotificationEvent    = "event"
	NotificationUser     = "user"
	NotificationChat     = "chat"
	NotificationSystem   = "system"
	NotificationOther    = "other"
)

// Notification — долговременная запись о событии. Создаётся диспетчером
// до любой попытки live-доставки, чтобы отвал сокета не терял факт.
type Notification struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientID      uuid.UUID `gorm:"not null;index:idx_recipient_read"`
	ActorID          *uuid.UUID
	Verb             string `gorm:"size:100;not null"`
	TargetType       string `gorm:"size:20"` // пусто, если цели нет
	TargetID         *uuid.UUID
	NotificationType string         `gorm:"size:50;not null;default:'other'"`
	Data             datatypes.JSON `gorm:"type:jsonb"`
	IsRead           bool           `gorm:"not null;default:false;index:idx_recipient_read"`
	CreatedAt        time.Time      `gorm:"index"`
}

// Target возвращает ссылку на цель, если она задана
func (n *Notification) Target() *TargetRef {
	if n.TargetType == "" || n.TargetID == nil {
		return nil
	}
	return &TargetRef{Kind: TargetKind(n.TargetType), ID: *n.TargetID}
}

func (n *Notification) SetTarget(t *TargetRef) {
	if t == nil {
		n.TargetType = ""
		n.TargetID = nil
		return
	}
	n.TargetType = string(t.Kind)
	id := t.ID
	n.TargetID = &id
}

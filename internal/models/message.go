package models

import (
	"github.com/google/uuid"
	"time"
)

const (
	MessageText   = "text"
	MessageSystem = "system"
	MessageJoin   = "join"
	MessageLeave  = "leave"
)

type Message struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID      uuid.UUID  `gorm:"not null;index"`
	SenderID    *uuid.UUID // nil для системных сообщений
	Content     string     `gorm:"not null"`
	MessageType string     `gorm:"not null;default:'text';check:message_type IN ('text','system','join','leave')"`
	CreatedAt   time.Time
}

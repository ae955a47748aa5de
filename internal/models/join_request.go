package models

import (
	"github.com/google/uuid"
	"time"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// JoinRequest — заявка на вступление в комнату.
// На пару (room, user) существует максимум одна строка: отклонённая заявка
// при повторном запросе сбрасывается обратно в pending.
type JoinRequest struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID        uuid.UUID `gorm:"not null;uniqueIndex:idx_room_request"`
	UserID        uuid.UUID `gorm:"not null;uniqueIndex:idx_room_request"`
	Status        string    `gorm:"not null;default:'pending';check:status IN ('pending','approved','rejected')"`
	Message       string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	ProcessedByID *uuid.UUID
}

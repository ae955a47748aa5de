package models

import (
	"github.com/google/uuid"
	"time"
)

// RoomParticipant — членство пользователя в комнате.
// Уникально по (room, user); при выходе строка деактивируется, а не удаляется.
type RoomParticipant struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RoomID      uuid.UUID `gorm:"not null;uniqueIndex:idx_room_participant"`
	UserID      uuid.UUID `gorm:"not null;uniqueIndex:idx_room_participant"`
	IsActive    bool      `gorm:"not null;default:true"`
	IsModerator bool      `gorm:"not null;default:false"`
	JoinedAt    time.Time
}

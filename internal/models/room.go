package models

import (
	"github.com/google/uuid"
	"time"
)

type Room struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string    `gorm:"not null"`
	Description     string
	RoomType        string    `gorm:"not null;default:'general';check:room_type IN ('class','study_group','general')"`
	CreatorID       uuid.UUID `gorm:"not null;index"`
	IsActive        bool      `gorm:"not null;default:true"`
	AutoApprove     bool      `gorm:"not null;default:true"`
	MaxParticipants int       `gorm:"not null;default:50"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Связи
	Participants []RoomParticipant `gorm:"foreignKey:RoomID"`
	Messages     []Message         `gorm:"foreignKey:RoomID"`
}

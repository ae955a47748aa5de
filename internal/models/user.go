package models

import (
	"github.com/google/uuid"
	"time"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;default:'student';check:role IN ('teacher','student','admin')"`
	AvatarURL    string
	LastSeenAt   time.Time
	CreatedAt    time.Time
}

// IsStaff — broadcast-канал доступен только админам
func (u *User) IsStaff() bool {
	return u.Role == "admin"
}

func (u *User) CanCreateRoom() bool {
	return u.Role == "teacher" || u.Role == "admin"
}

package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/thereayou/classpulse/internal/models"
)

func (d *Database) SaveMessage(ctx context.Context, msg *models.Message) error {
	return d.db.WithContext(ctx).Create(msg).Error
}

// RoomMessages возвращает последние limit сообщений, старые первыми
func (d *Database) RoomMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message

	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/thereayou/classpulse/internal/models"
	"github.com/thereayou/classpulse/internal/services"
)

func (d *Database) CreateNotification(ctx context.Context, n *models.Notification) error {
	return d.db.WithContext(ctx).Create(n).Error
}

func (d *Database) GetNotification(ctx context.Context, id, recipientID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	err := d.db.WithContext(ctx).
		First(&n, "id = ? AND recipient_id = ?", id, recipientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (d *Database) ListNotifications(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	query := d.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	return notifications, err
}

func (d *Database) MarkNotificationRead(ctx context.Context, id, recipientID uuid.UUID) error {
	result := d.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrNotificationNotFound
	}
	return nil
}

func (d *Database) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result := d.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (d *Database) DeleteNotification(ctx context.Context, id, recipientID uuid.UUID) error {
	result := d.db.WithContext(ctx).
		Delete(&models.Notification{}, "id = ? AND recipient_id = ?", id, recipientID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrNotificationNotFound
	}
	return nil
}

func (d *Database) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// StampDelivered пишет отметку о live-доставке в data-поле записи
func (d *Database) StampDelivered(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	n, err := d.GetNotification(ctx, id, recipientID)
	if err != nil {
		return err
	}

	data := map[string]interface{}{}
	if len(n.Data) > 0 {
		if err := json.Unmarshal(n.Data, &data); err != nil {
			data = map[string]interface{}{}
		}
	}
	data["delivered_at"] = at.UTC().Format(time.RFC3339)

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return d.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Update("data", datatypes.JSON(raw)).Error
}

func (d *Database) PurgeNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := d.db.WithContext(ctx).
		Delete(&models.Notification{}, "created_at < ?", cutoff)
	return result.RowsAffected, result.Error
}

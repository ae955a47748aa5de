package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thereayou/classpulse/internal/models"
	"github.com/thereayou/classpulse/internal/services"
)

func (d *Database) CreateRoom(ctx context.Context, room *models.Room) error {
	return d.db.WithContext(ctx).Create(room).Error
}

func (d *Database) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := d.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (d *Database) ListActiveRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := d.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&rooms).Error
	return rooms, err
}

func (d *Database) DeactivateRoom(ctx context.Context, id uuid.UUID) error {
	result := d.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrRoomNotFound
	}
	return nil
}

// DeleteRoomCascade удаляет комнату со всеми зависимыми строками
func (d *Database) DeleteRoomCascade(ctx context.Context, id uuid.UUID) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrRoomNotFound
			}
			return err
		}

		if err := tx.Delete(&models.Message{}, "room_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.JoinRequest{}, "room_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.RoomParticipant{}, "room_id = ?", id).Error; err != nil {
			return err
		}

		return tx.Delete(&room).Error
	})
}

// RequestJoin — атомарный переход NotParticipant -> Pending|Participant.
// Блокировка строки комнаты сериализует конкурентные заявки: проверка
// вместимости и запись не могут разъехаться между транзакциями.
func (d *Database) RequestJoin(ctx context.Context, roomID, userID uuid.UUID, message string) (*models.JoinRequest, error) {
	var req *models.JoinRequest

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ? AND is_active = ?", roomID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrRoomNotFound
			}
			return err
		}

		var active int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return services.ErrAlreadyParticipant
		}

		var count int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND is_active = ?", roomID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(room.MaxParticipants) {
			return services.ErrRoomFull
		}

		var existing models.JoinRequest
		findErr := tx.First(&existing, "room_id = ? AND user_id = ?", roomID, userID).Error
		switch {
		case findErr == nil && existing.Status == models.RequestPending:
			return services.ErrDuplicatePending
		case findErr == nil && existing.Status == models.RequestApproved:
			return services.ErrAlreadyParticipant
		case findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound):
			return findErr
		}

		now := time.Now()

		if room.AutoApprove {
			if findErr == nil {
				// rejected-строка переиспользуется, пара остаётся уникальной
				existing.Status = models.RequestApproved
				existing.Message = message
				existing.ProcessedAt = &now
				existing.ProcessedByID = nil
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				req = &existing
			} else {
				created := models.JoinRequest{
					RoomID:      roomID,
					UserID:      userID,
					Status:      models.RequestApproved,
					Message:     message,
					CreatedAt:   now,
					ProcessedAt: &now,
				}
				if err := tx.Create(&created).Error; err != nil {
					return err
				}
				req = &created
			}
			return upsertParticipant(tx, roomID, userID)
		}

		if findErr == nil {
			existing.Status = models.RequestPending
			existing.Message = message
			existing.ProcessedAt = nil
			existing.ProcessedByID = nil
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			req = &existing
			return nil
		}

		created := models.JoinRequest{
			RoomID:    roomID,
			UserID:    userID,
			Status:    models.RequestPending,
			Message:   message,
			CreatedAt: now,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		req = &created
		return nil
	})

	if err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveJoin — pending -> approved. Вместимость проверяется под тем же
// локом комнаты, что и у RequestJoin.
func (d *Database) ApproveJoin(ctx context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error) {
	var req *models.JoinRequest

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ? AND is_active = ?", roomID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrRoomNotFound
			}
			return err
		}

		var pending models.JoinRequest
		if err := tx.First(&pending, "room_id = ? AND user_id = ? AND status = ?",
			roomID, requesterID, models.RequestPending).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrRequestNotFound
			}
			return err
		}

		var count int64
		if err := tx.Model(&models.RoomParticipant{}).
			Where("room_id = ? AND is_active = ?", roomID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(room.MaxParticipants) {
			return services.ErrRoomFull
		}

		now := time.Now()
		pending.Status = models.RequestApproved
		pending.ProcessedAt = &now
		pending.ProcessedByID = &actorID
		if err := tx.Save(&pending).Error; err != nil {
			return err
		}
		req = &pending

		return upsertParticipant(tx, roomID, requesterID)
	})

	if err != nil {
		return nil, err
	}
	return req, nil
}

func (d *Database) RejectJoin(ctx context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error) {
	var req *models.JoinRequest

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending models.JoinRequest
		if err := tx.First(&pending, "room_id = ? AND user_id = ? AND status = ?",
			roomID, requesterID, models.RequestPending).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return services.ErrRequestNotFound
			}
			return err
		}

		now := time.Now()
		pending.Status = models.RequestRejected
		pending.ProcessedAt = &now
		pending.ProcessedByID = &actorID
		if err := tx.Save(&pending).Error; err != nil {
			return err
		}
		req = &pending
		return nil
	})

	if err != nil {
		return nil, err
	}
	return req, nil
}

func (d *Database) DeactivateParticipant(ctx context.Context, roomID, userID uuid.UUID) error {
	result := d.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return services.ErrNotParticipant
	}
	return nil
}

func (d *Database) IsActiveParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ?", roomID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) IsModerator(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.RoomParticipant{}).
		Where("room_id = ? AND user_id = ? AND is_active = ? AND is_moderator = ?", roomID, userID, true, true).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) ActiveParticipants(ctx context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	var participants []models.RoomParticipant
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}

func (d *Database) PendingRequests(ctx context.Context, roomID uuid.UUID) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := d.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, models.RequestPending).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

func (d *Database) UserJoinRequests(ctx context.Context, userID uuid.UUID) ([]models.JoinRequest, error) {
	var requests []models.JoinRequest
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// upsertParticipant создаёт участника или реактивирует прежнюю строку
func upsertParticipant(tx *gorm.DB, roomID, userID uuid.UUID) error {
	var p models.RoomParticipant
	err := tx.First(&p, "room_id = ? AND user_id = ?", roomID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = models.RoomParticipant{
			RoomID:   roomID,
			UserID:   userID,
			IsActive: true,
			JoinedAt: time.Now(),
		}
		return tx.Create(&p).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&p).Updates(map[string]interface{}{
		"is_active": true,
		"joined_at": time.Now(),
	}).Error
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/classpulse/internal/models"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

// RoomService — машина состояний членства: заявки, авто/ручное одобрение,
// вместимость, модерация. Авторизацию и фан-аут делает сервис, атомарные
// переходы — Store.
type RoomService struct {
	store      Store
	dispatcher *Dispatcher
	sender     GroupSender
}

func NewRoomService(store Store, dispatcher *Dispatcher, sender GroupSender) *RoomService {
	return &RoomService{store: store, dispatcher: dispatcher, sender: sender}
}

func (s *RoomService) CreateRoom(ctx context.Context, creator *models.User, room *models.Room) error {
	if !creator.CanCreateRoom() {
		return ErrForbidden
	}
	if room.MaxParticipants <= 0 {
		room.MaxParticipants = 50
	}
	room.CreatorID = creator.ID
	room.IsActive = true
	return s.store.CreateRoom(ctx, room)
}

// RequestJoin. Комната с auto_approve впускает сразу: участник и approved
// заявка создаются одной транзакцией, хост получает только информационный
// broadcast в комнату, без pending-уведомления.
func (s *RoomService) RequestJoin(ctx context.Context, roomID, userID uuid.UUID, message string) (*models.JoinRequest, error) {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatorID == userID {
		return nil, ErrAlreadyParticipant
	}

	req, err := s.store.RequestJoin(ctx, roomID, userID, message)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case models.RequestApproved:
		s.systemMessage(ctx, room, fmt.Sprintf("%s has joined the room.", user.Username), models.MessageJoin)
	case models.RequestPending:
		if _, err := s.dispatcher.ChatJoinRequest(ctx, room, user); err != nil {
			log.Printf("Join request notification failed: %v", err)
		}
	}

	return req, nil
}

// ApproveRequest: pending -> approved + активация участника.
// Проверка вместимости живёт в той же транзакции, что и запись.
func (s *RoomService) ApproveRequest(ctx context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error) {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(ctx, room, actorID); err != nil {
		return nil, err
	}

	req, err := s.store.ApproveJoin(ctx, roomID, requesterID, actorID)
	if err != nil {
		return nil, err
	}

	requester, err := s.store.GetUser(ctx, requesterID)
	if err == nil {
		s.systemMessage(ctx, room, fmt.Sprintf("%s has joined the room.", requester.Username), models.MessageJoin)
	}

	if _, err := s.dispatcher.ChatJoinApproved(ctx, room, requesterID, actorID); err != nil {
		log.Printf("Approval notification failed: %v", err)
	}

	return req, nil
}

func (s *RoomService) DenyRequest(ctx context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error) {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.requireHost(ctx, room, actorID); err != nil {
		return nil, err
	}

	req, err := s.store.RejectJoin(ctx, roomID, requesterID, actorID)
	if err != nil {
		return nil, err
	}

	if _, err := s.dispatcher.ChatJoinRejected(ctx, room, requesterID, actorID); err != nil {
		log.Printf("Rejection notification failed: %v", err)
	}

	return req, nil
}

// Leave. Уход хоста мягко закрывает комнату.
func (s *RoomService) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return err
	}

	if room.CreatorID == userID {
		if err := s.store.DeactivateRoom(ctx, roomID); err != nil {
			return err
		}
		host, err := s.store.GetUser(ctx, userID)
		name := "Host"
		if err == nil {
			name = host.Username
		}
		s.systemMessage(ctx, room, fmt.Sprintf("Host %s left. Room closed.", name), models.MessageSystem)
		return nil
	}

	if err := s.store.DeactivateParticipant(ctx, roomID, userID); err != nil {
		return err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err == nil {
		s.systemMessage(ctx, room, fmt.Sprintf("%s has left.", user.Username), models.MessageLeave)
	}
	return nil
}

func (s *RoomService) RemoveParticipant(ctx context.Context, roomID, targetID, actorID uuid.UUID) error {
	room, err := s.activeRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.requireHost(ctx, room, actorID); err != nil {
		return err
	}
	if targetID == actorID {
		return ErrSelfRemoval
	}

	if err := s.store.DeactivateParticipant(ctx, roomID, targetID); err != nil {
		return err
	}

	target, err := s.store.GetUser(ctx, targetID)
	if err == nil {
		s.systemMessage(ctx, room, fmt.Sprintf("%s was removed by the host.", target.Username), models.MessageSystem)
	}

	targetRef := &models.TargetRef{Kind: models.TargetRoom, ID: room.ID, Name: room.Name}
	if _, err := s.dispatcher.Dispatch(ctx, targetID, "removed you from", &actorID, targetRef, models.NotificationChat, map[string]interface{}{
		"room_name":   room.Name,
		"room_id":     room.ID,
		"action_type": "participant_removed",
	}); err != nil {
		log.Printf("Removal notification failed: %v", err)
	}
	return nil
}

// EndMeeting жёстко удаляет комнату со всеми зависимыми строками.
// Уведомления уходят ДО удаления: после каскада ссылаться уже не на что.
func (s *RoomService) EndMeeting(ctx context.Context, roomID, actorID uuid.UUID) error {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.requireHost(ctx, room, actorID); err != nil {
		return err
	}

	participants, err := s.store.ActiveParticipants(ctx, roomID)
	if err != nil {
		return err
	}
	recipients := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		if p.UserID != actorID {
			recipients = append(recipients, p.UserID)
		}
	}

	s.dispatcher.DispatchBulk(ctx, recipients, "ended the meeting", &actorID, nil, models.NotificationChat, map[string]interface{}{
		"room_name":   room.Name,
		"action_type": "meeting_deleted",
	})

	s.broadcastSystem(room.ID, "Meeting ended by the host.")

	return s.store.DeleteRoomCascade(ctx, roomID)
}

// CanAccess: хост или активный участник активной комнаты
func (s *RoomService) CanAccess(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, bool, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	if !room.IsActive {
		return room, false, nil
	}
	if room.CreatorID == userID {
		return room, true, nil
	}
	active, err := s.store.IsActiveParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, false, err
	}
	return room, active, nil
}

func (s *RoomService) activeRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomService) requireHost(ctx context.Context, room *models.Room, actorID uuid.UUID) error {
	if room.CreatorID == actorID {
		return nil
	}
	moderator, err := s.store.IsModerator(ctx, room.ID, actorID)
	if err != nil {
		return err
	}
	if !moderator {
		return ErrForbidden
	}
	return nil
}

// systemMessage персистит системное сообщение и рассылает его в комнату
func (s *RoomService) systemMessage(ctx context.Context, room *models.Room, text, messageType string) {
	msg := &models.Message{
		RoomID:      room.ID,
		SenderID:    nil,
		Content:     text,
		MessageType: messageType,
		CreatedAt:   time.Now(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		log.Printf("System message save failed: %v", err)
	}
	s.broadcastSystem(room.ID, text)
}

func (s *RoomService) broadcastSystem(roomID uuid.UUID, text string) {
	frame, err := json.Marshal(map[string]interface{}{
		"type":      "system",
		"message":   text,
		"timestamp": now(),
	})
	if err != nil {
		return
	}
	s.sender.Send(ws.RoomGroup(roomID), frame)
}

package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/thereayou/classpulse/internal/models"
)

// memStore — in-memory реализация Store для тестов. Один мьютекс на всё
// хранилище даёт ту же атомарность переходов, что транзакции в Postgres.
type memStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	rooms         map[uuid.UUID]*models.Room
	participants  []*models.RoomParticipant
	requests      []*models.JoinRequest
	messages      []*models.Message
	notifications []*models.Notification
}

func newMemStore() *memStore {
	return &memStore{
		users: make(map[uuid.UUID]*models.User),
		rooms: make(map[uuid.UUID]*models.Room),
	}
}

func (m *memStore) addUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memStore) Admins(_ context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var admins []models.User
	for _, u := range m.users {
		if u.Role == "admin" {
			admins = append(admins, *u)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].CreatedAt.Before(admins[j].CreatedAt) })
	return admins, nil
}

func (m *memStore) CreateRoom(_ context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	copied := *room
	m.rooms[room.ID] = &copied
	return nil
}

func (m *memStore) GetRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	copied := *room
	return &copied, nil
}

func (m *memStore) ListActiveRooms(_ context.Context) ([]models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rooms []models.Room
	for _, room := range m.rooms {
		if room.IsActive {
			rooms = append(rooms, *room)
		}
	}
	return rooms, nil
}

func (m *memStore) DeactivateRoom(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok || !room.IsActive {
		return ErrRoomNotFound
	}
	room.IsActive = false
	return nil
}

func (m *memStore) DeleteRoomCascade(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(m.rooms, id)

	keepP := m.participants[:0]
	for _, p := range m.participants {
		if p.RoomID != id {
			keepP = append(keepP, p)
		}
	}
	m.participants = keepP

	keepR := m.requests[:0]
	for _, r := range m.requests {
		if r.RoomID != id {
			keepR = append(keepR, r)
		}
	}
	m.requests = keepR

	keepM := m.messages[:0]
	for _, msg := range m.messages {
		if msg.RoomID != id {
			keepM = append(keepM, msg)
		}
	}
	m.messages = keepM
	return nil
}

func (m *memStore) RequestJoin(_ context.Context, roomID, userID uuid.UUID, message string) (*models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok || !room.IsActive {
		return nil, ErrRoomNotFound
	}

	if m.activeParticipantLocked(roomID, userID) {
		return nil, ErrAlreadyParticipant
	}
	if m.activeCountLocked(roomID) >= int64(room.MaxParticipants) {
		return nil, ErrRoomFull
	}

	existing := m.requestLocked(roomID, userID)
	if existing != nil {
		switch existing.Status {
		case models.RequestPending:
			return nil, ErrDuplicatePending
		case models.RequestApproved:
			return nil, ErrAlreadyParticipant
		}
	}

	now := time.Now()

	if room.AutoApprove {
		if existing != nil {
			existing.Status = models.RequestApproved
			existing.Message = message
			existing.ProcessedAt = &now
			existing.ProcessedByID = nil
			m.upsertParticipantLocked(roomID, userID)
			copied := *existing
			return &copied, nil
		}
		created := &models.JoinRequest{
			ID: uuid.New(), RoomID: roomID, UserID: userID,
			Status: models.RequestApproved, Message: message,
			CreatedAt: now, ProcessedAt: &now,
		}
		m.requests = append(m.requests, created)
		m.upsertParticipantLocked(roomID, userID)
		copied := *created
		return &copied, nil
	}

	if existing != nil {
		existing.Status = models.RequestPending
		existing.Message = message
		existing.ProcessedAt = nil
		existing.ProcessedByID = nil
		copied := *existing
		return &copied, nil
	}

	created := &models.JoinRequest{
		ID: uuid.New(), RoomID: roomID, UserID: userID,
		Status: models.RequestPending, Message: message, CreatedAt: now,
	}
	m.requests = append(m.requests, created)
	copied := *created
	return &copied, nil
}

func (m *memStore) ApproveJoin(_ context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok || !room.IsActive {
		return nil, ErrRoomNotFound
	}

	pending := m.requestLocked(roomID, requesterID)
	if pending == nil || pending.Status != models.RequestPending {
		return nil, ErrRequestNotFound
	}

	if m.activeCountLocked(roomID) >= int64(room.MaxParticipants) {
		return nil, ErrRoomFull
	}

	now := time.Now()
	pending.Status = models.RequestApproved
	pending.ProcessedAt = &now
	pending.ProcessedByID = &actorID
	m.upsertParticipantLocked(roomID, requesterID)

	copied := *pending
	return &copied, nil
}

func (m *memStore) RejectJoin(_ context.Context, roomID, requesterID, actorID uuid.UUID) (*models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.requestLocked(roomID, requesterID)
	if pending == nil || pending.Status != models.RequestPending {
		return nil, ErrRequestNotFound
	}

	now := time.Now()
	pending.Status = models.RequestRejected
	pending.ProcessedAt = &now
	pending.ProcessedByID = &actorID

	copied := *pending
	return &copied, nil
}

func (m *memStore) DeactivateParticipant(_ context.Context, roomID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID && p.IsActive {
			p.IsActive = false
			return nil
		}
	}
	return ErrNotParticipant
}

func (m *memStore) IsActiveParticipant(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeParticipantLocked(roomID, userID), nil
}

func (m *memStore) IsModerator(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID && p.IsActive && p.IsModerator {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ActiveParticipants(_ context.Context, roomID uuid.UUID) ([]models.RoomParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RoomParticipant
	for _, p := range m.participants {
		if p.RoomID == roomID && p.IsActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memStore) PendingRequests(_ context.Context, roomID uuid.UUID) ([]models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JoinRequest
	for _, r := range m.requests {
		if r.RoomID == roomID && r.Status == models.RequestPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) UserJoinRequests(_ context.Context, userID uuid.UUID) ([]models.JoinRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JoinRequest
	for _, r := range m.requests {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) SaveMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	copied := *msg
	m.messages = append(m.messages, &copied)
	return nil
}

func (m *memStore) RoomMessages(_ context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.RoomID == roomID {
			out = append(out, *msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	copied := *n
	m.notifications = append(m.notifications, &copied)
	return nil
}

func (m *memStore) GetNotification(_ context.Context, id, recipientID uuid.UUID) (*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notificationLocked(id, recipientID)
	if n == nil {
		return nil, ErrNotificationNotFound
	}
	copied := *n
	return &copied, nil
}

func (m *memStore) ListNotifications(_ context.Context, recipientID uuid.UUID, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) MarkNotificationRead(_ context.Context, id, recipientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notificationLocked(id, recipientID)
	if n == nil {
		return ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

func (m *memStore) MarkAllNotificationsRead(_ context.Context, recipientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var updated int64
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (m *memStore) DeleteNotification(_ context.Context, id, recipientID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			m.notifications = append(m.notifications[:i], m.notifications[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (m *memStore) UnreadCount(_ context.Context, recipientID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, n := range m.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memStore) StampDelivered(_ context.Context, id, recipientID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.notificationLocked(id, recipientID)
	if n == nil {
		return ErrNotificationNotFound
	}

	data := map[string]interface{}{}
	if len(n.Data) > 0 {
		json.Unmarshal(n.Data, &data)
	}
	data["delivered_at"] = at.UTC().Format(time.RFC3339)
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	n.Data = datatypes.JSON(raw)
	return nil
}

func (m *memStore) PurgeNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	keep := m.notifications[:0]
	for _, n := range m.notifications {
		if n.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		keep = append(keep, n)
	}
	m.notifications = keep
	return deleted, nil
}

func (m *memStore) activeParticipantLocked(roomID, userID uuid.UUID) bool {
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID && p.IsActive {
			return true
		}
	}
	return false
}

func (m *memStore) activeCountLocked(roomID uuid.UUID) int64 {
	var count int64
	for _, p := range m.participants {
		if p.RoomID == roomID && p.IsActive {
			count++
		}
	}
	return count
}

func (m *memStore) notificationLocked(id, recipientID uuid.UUID) *models.Notification {
	for _, n := range m.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			return n
		}
	}
	return nil
}

func (m *memStore) requestLocked(roomID, userID uuid.UUID) *models.JoinRequest {
	for _, r := range m.requests {
		if r.RoomID == roomID && r.UserID == userID {
			return r
		}
	}
	return nil
}

func (m *memStore) upsertParticipantLocked(roomID, userID uuid.UUID) {
	for _, p := range m.participants {
		if p.RoomID == roomID && p.UserID == userID {
			p.IsActive = true
			p.JoinedAt = time.Now()
			return
		}
	}
	m.participants = append(m.participants, &models.RoomParticipant{
		ID: uuid.New(), RoomID: roomID, UserID: userID,
		IsActive: true, JoinedAt: time.Now(),
	})
}

// frameSink собирает отправленные кадры вместо реального хаба
type frameSink struct {
	mu     sync.Mutex
	frames []sinkFrame
}

type sinkFrame struct {
	Group   string
	Payload map[string]interface{}
}

func (s *frameSink) Send(group string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := map[string]interface{}{}
	json.Unmarshal(payload, &frame)
	s.frames = append(s.frames, sinkFrame{Group: group, Payload: frame})
}

func (s *frameSink) byType(frameType string) []sinkFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkFrame
	for _, f := range s.frames {
		if f.Payload["type"] == frameType {
			out = append(out, f)
		}
	}
	return out
}

func (s *frameSink) forGroup(group string) []sinkFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkFrame
	for _, f := range s.frames {
		if f.Group == group {
			out = append(out, f)
		}
	}
	return out
}

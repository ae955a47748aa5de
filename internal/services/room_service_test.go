package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/thereayou/classpulse/internal/models"
	ws "github.com/thereayou/classpulse/internal/websocket"
)

func newTestEnv() (*memStore, *frameSink, *RoomService) {
	store := newMemStore()
	sink := &frameSink{}
	dispatcher := NewDispatcher(store, sink)
	return store, sink, NewRoomService(store, dispatcher, sink)
}

func addTeacher(store *memStore, name string) *models.User {
	return store.addUser(&models.User{Username: name, Role: "teacher"})
}

func addStudent(store *memStore, name string) *models.User {
	return store.addUser(&models.User{Username: name, Role: "student"})
}

func makeRoom(t *testing.T, svc *RoomService, creator *models.User, autoApprove bool, capacity int) *models.Room {
	t.Helper()
	room := &models.Room{
		Name:            "algebra",
		RoomType:        "class",
		AutoApprove:     autoApprove,
		MaxParticipants: capacity,
	}
	if err := svc.CreateRoom(context.Background(), creator, room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return room
}

func TestCreateRoomForbiddenForStudents(t *testing.T) {
	store, _, svc := newTestEnv()
	student := addStudent(store, "petrov")

	err := svc.CreateRoom(context.Background(), student, &models.Room{Name: "x"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestAutoApproveJoin(t *testing.T) {
	store, sink, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, true, 10)

	req, err := svc.RequestJoin(context.Background(), room.ID, student.ID, "")
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if req.Status != models.RequestApproved {
		t.Fatalf("expected approved, got %s", req.Status)
	}

	active, _ := store.IsActiveParticipant(context.Background(), room.ID, student.ID)
	if !active {
		t.Fatal("student is not an active participant")
	}

	// Системное сообщение о входе записано и разослано в комнату
	messages, _ := store.RoomMessages(context.Background(), room.ID, 10)
	if len(messages) != 1 || messages[0].MessageType != models.MessageJoin {
		t.Fatalf("expected one join message, got %+v", messages)
	}
	if frames := sink.forGroup(ws.RoomGroup(room.ID)); len(frames) != 1 {
		t.Fatalf("expected one room frame, got %d", len(frames))
	}

	// Хосту не должно прилетать pending-уведомление
	if n, _ := store.UnreadCount(context.Background(), teacher.ID); n != 0 {
		t.Fatalf("host unexpectedly has %d notifications", n)
	}
}

func TestManualApprovalFlow(t *testing.T) {
	store, sink, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, false, 10)
	ctx := context.Background()

	req, err := svc.RequestJoin(ctx, room.ID, student.ID, "let me in")
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if req.Status != models.RequestPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}

	// Хост получает персистентное уведомление о заявке
	hostNotifications, _ := store.ListNotifications(ctx, teacher.ID, false, 10, 0)
	if len(hostNotifications) != 1 || hostNotifications[0].Verb != "requested to join" {
		t.Fatalf("unexpected host notifications: %+v", hostNotifications)
	}
	if frames := sink.forGroup(ws.UserGroup(teacher.ID)); len(frames) == 0 {
		t.Fatal("no push frames to host")
	}

	if _, err := svc.ApproveRequest(ctx, room.ID, student.ID, teacher.ID); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	active, _ := store.IsActiveParticipant(ctx, room.ID, student.ID)
	if !active {
		t.Fatal("student not active after approval")
	}

	studentNotifications, _ := store.ListNotifications(ctx, student.ID, false, 10, 0)
	if len(studentNotifications) != 1 || studentNotifications[0].Verb != "approved your request to join" {
		t.Fatalf("unexpected student notifications: %+v", studentNotifications)
	}
}

func TestDenyFlow(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, false, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	req, err := svc.DenyRequest(ctx, room.ID, student.ID, teacher.ID)
	if err != nil {
		t.Fatalf("DenyRequest: %v", err)
	}
	if req.Status != models.RequestRejected {
		t.Fatalf("expected rejected, got %s", req.Status)
	}

	active, _ := store.IsActiveParticipant(ctx, room.ID, student.ID)
	if active {
		t.Fatal("rejected student must not be active")
	}

	notifications, _ := store.ListNotifications(ctx, student.ID, false, 10, 0)
	if len(notifications) != 1 || notifications[0].Verb != "rejected your request to join" {
		t.Fatalf("unexpected notifications: %+v", notifications)
	}
}

func TestApproveRequiresHost(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	outsider := addStudent(store, "sidorov")
	room := makeRoom(t, svc, teacher, false, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if _, err := svc.ApproveRequest(ctx, room.ID, student.ID, outsider.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

// Вместимость проверяется и в момент одобрения: место могли занять,
// пока заявка лежала в pending
func TestApproveFailsWhenRoomFilledUp(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	first := addStudent(store, "petrov")
	second := addStudent(store, "sidorov")
	room := makeRoom(t, svc, teacher, false, 1)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, first.ID, ""); err != nil {
		t.Fatalf("first RequestJoin: %v", err)
	}
	if _, err := svc.RequestJoin(ctx, room.ID, second.ID, ""); err != nil {
		t.Fatalf("second RequestJoin: %v", err)
	}

	if _, err := svc.ApproveRequest(ctx, room.ID, first.ID, teacher.ID); err != nil {
		t.Fatalf("first ApproveRequest: %v", err)
	}
	if _, err := svc.ApproveRequest(ctx, room.ID, second.ID, teacher.ID); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected ErrRoomFull, got %v", err)
	}

	participants, _ := store.ActiveParticipants(ctx, room.ID)
	if len(participants) != 1 {
		t.Fatalf("capacity invariant broken: %d participants", len(participants))
	}
}

func TestDuplicatePendingRequest(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, false, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("first RequestJoin: %v", err)
	}
	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("expected ErrDuplicatePending, got %v", err)
	}
}

// Отклонённая заявка не хоронит пользователя навсегда: повторный запрос
// переводит ту же строку обратно в pending
func TestRejectedCanRequestAgain(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, false, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if _, err := svc.DenyRequest(ctx, room.ID, student.ID, teacher.ID); err != nil {
		t.Fatalf("DenyRequest: %v", err)
	}

	req, err := svc.RequestJoin(ctx, room.ID, student.ID, "second try")
	if err != nil {
		t.Fatalf("second RequestJoin: %v", err)
	}
	if req.Status != models.RequestPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}

	all, _ := store.UserJoinRequests(ctx, student.ID)
	if len(all) != 1 {
		t.Fatalf("expected single request row per pair, got %d", len(all))
	}
}

// Конкурентные заявки на последнее место: впускается ровно capacity
func TestConcurrentJoinRespectsCapacity(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	room := makeRoom(t, svc, teacher, true, 3)
	ctx := context.Background()

	const contenders = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, full := 0, 0

	for i := 0; i < contenders; i++ {
		student := addStudent(store, "s")
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := svc.RequestJoin(ctx, room.ID, id, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, ErrRoomFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(student.ID)
	}
	wg.Wait()

	if admitted != 3 {
		t.Fatalf("expected 3 admitted, got %d", admitted)
	}
	if full != contenders-3 {
		t.Fatalf("expected %d rejections, got %d", contenders-3, full)
	}

	participants, _ := store.ActiveParticipants(ctx, room.ID)
	if len(participants) != 3 {
		t.Fatalf("expected 3 active participants, got %d", len(participants))
	}
}

func TestHostLeaveClosesRoom(t *testing.T) {
	store, sink, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, true, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if err := svc.Leave(ctx, room.ID, teacher.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	got, err := store.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.IsActive {
		t.Fatal("room must be inactive after host leave")
	}

	// История сохранилась, мягкое закрытие — не удаление
	messages, _ := store.RoomMessages(ctx, room.ID, 10)
	if len(messages) == 0 {
		t.Fatal("history lost on soft close")
	}
	if frames := sink.forGroup(ws.RoomGroup(room.ID)); len(frames) < 2 {
		t.Fatalf("expected join+close frames, got %d", len(frames))
	}
}

func TestRemoveParticipant(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, true, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	if err := svc.RemoveParticipant(ctx, room.ID, teacher.ID, teacher.ID); !errors.Is(err, ErrSelfRemoval) {
		t.Fatalf("expected ErrSelfRemoval, got %v", err)
	}
	if err := svc.RemoveParticipant(ctx, room.ID, teacher.ID, student.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := svc.RemoveParticipant(ctx, room.ID, student.ID, teacher.ID); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	active, _ := store.IsActiveParticipant(ctx, room.ID, student.ID)
	if active {
		t.Fatal("removed participant still active")
	}

	notifications, _ := store.ListNotifications(ctx, student.ID, false, 10, 0)
	if len(notifications) != 1 || notifications[0].Verb != "removed you from" {
		t.Fatalf("unexpected notifications: %+v", notifications)
	}
}

// Участники должны получить уведомление ДО каскадного удаления комнаты
func TestEndMeetingNotifiesThenDeletes(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	room := makeRoom(t, svc, teacher, true, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if err := svc.EndMeeting(ctx, room.ID, teacher.ID); err != nil {
		t.Fatalf("EndMeeting: %v", err)
	}

	if _, err := store.GetRoom(ctx, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("room must be deleted, got %v", err)
	}
	messages, _ := store.RoomMessages(ctx, room.ID, 10)
	if len(messages) != 0 {
		t.Fatal("messages must be cascade-deleted")
	}

	notifications, _ := store.ListNotifications(ctx, student.ID, false, 10, 0)
	if len(notifications) != 1 || notifications[0].Verb != "ended the meeting" {
		t.Fatalf("unexpected notifications: %+v", notifications)
	}
	// Хост сам себе уведомление не шлёт
	if n, _ := store.UnreadCount(ctx, teacher.ID); n != 0 {
		t.Fatalf("host has %d unexpected notifications", n)
	}
}

func TestCanAccess(t *testing.T) {
	store, _, svc := newTestEnv()
	teacher := addTeacher(store, "ivanova")
	student := addStudent(store, "petrov")
	outsider := addStudent(store, "sidorov")
	room := makeRoom(t, svc, teacher, true, 10)
	ctx := context.Background()

	if _, err := svc.RequestJoin(ctx, room.ID, student.ID, ""); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	for _, tc := range []struct {
		name   string
		userID uuid.UUID
		want   bool
	}{
		{"host", teacher.ID, true},
		{"participant", student.ID, true},
		{"outsider", outsider.ID, false},
	} {
		_, allowed, err := svc.CanAccess(ctx, room.ID, tc.userID)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if allowed != tc.want {
			t.Errorf("%s: allowed=%v, want %v", tc.name, allowed, tc.want)
		}
	}

	// Неактивная комната недоступна даже участникам
	store.DeactivateRoom(ctx, room.ID)
	_, allowed, _ := svc.CanAccess(ctx, room.ID, student.ID)
	if allowed {
		t.Fatal("inactive room must refuse access")
	}
}

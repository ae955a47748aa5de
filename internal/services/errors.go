package services

import "errors"

// Ошибки состояния возвращаются вызывающему синхронно и мапятся
// на HTTP-статусы в handlers. Ошибки доставки сюда не попадают:
// мёртвое соединение при broadcast — это лог, а не ошибка операции.
var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRequestNotFound      = errors.New("join request not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrUserNotFound         = errors.New("user not found")

	ErrForbidden          = errors.New("operation requires host or moderator")
	ErrAlreadyParticipant = errors.New("user is already a participant")
	ErrDuplicatePending   = errors.New("join request is already pending")
	ErrRoomFull           = errors.New("room is full")
	ErrNotParticipant     = errors.New("user is not an active participant")
	ErrSelfRemoval        = errors.New("host cannot remove themselves")

	ErrEmptyVerb = errors.New("notification verb cannot be empty")
)

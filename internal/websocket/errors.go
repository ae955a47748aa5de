package websocket

import "errors"

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrInvalidFrame    = errors.New("invalid frame format")
	ErrUnknownType     = errors.New("unknown message type")
	ErrUnauthorized    = errors.New("unauthorized")
)

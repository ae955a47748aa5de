package models

import (
	"fmt"

	"github.com/google/uuid"
)

// TargetKind — закрытый набор типов целей уведомления.
// Никакого рефлексивного поиска по объекту: что умеет каждая цель,
// описано в таблице targetKinds.
type TargetKind string

const (
	TargetResource TargetKind = "resource"
	TargetEvent    TargetKind = "event"
	TargetRoom     TargetKind = "room"
	TargetMessage  TargetKind = "message"
)

type targetInfo struct {
	label     string
	urlFormat string
}

var targetKinds = map[TargetKind]targetInfo{
	TargetResource: {label: "Resource", urlFormat: "/resources/%s"},
	TargetEvent:    {label: "Event", urlFormat: "/events/%s"},
	TargetRoom:     {label: "Room", urlFormat: "/chat/rooms/%s"},
	TargetMessage:  {label: "Message", urlFormat: "/chat/messages/%s"},
}

// TargetRef — типизированная ссылка на целевой объект уведомления.
// Name опционален: берётся из данных события, если отправитель его знал.
type TargetRef struct {
	Kind TargetKind
	ID   uuid.UUID
	Name string
}

func (t *TargetRef) Valid() bool {
	_, ok := targetKinds[t.Kind]
	return ok && t.ID != uuid.Nil
}

func (t *TargetRef) DisplayName() string {
	if t == nil {
		return "Unknown"
	}
	if t.Name != "" {
		return t.Name
	}
	if info, ok := targetKinds[t.Kind]; ok {
		return info.label
	}
	return "Unknown"
}

func (t *TargetRef) URL() string {
	if t == nil {
		return ""
	}
	info, ok := targetKinds[t.Kind]
	if !ok {
		return ""
	}
	return fmt.Sprintf(info.urlFormat, t.ID)
}

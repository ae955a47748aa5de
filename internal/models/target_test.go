package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestTargetRefDisplayName(t *testing.T) {
	id := uuid.New()

	named := &TargetRef{Kind: TargetResource, ID: id, Name: "Lecture 3"}
	if got := named.DisplayName(); got != "Lecture 3" {
		t.Errorf("named: got %q", got)
	}

	unnamed := &TargetRef{Kind: TargetEvent, ID: id}
	if got := unnamed.DisplayName(); got != "Event" {
		t.Errorf("label fallback: got %q", got)
	}

	unknown := &TargetRef{Kind: TargetKind("satellite"), ID: id}
	if got := unknown.DisplayName(); got != "Unknown" {
		t.Errorf("unknown kind: got %q", got)
	}

	var nilRef *TargetRef
	if got := nilRef.DisplayName(); got != "Unknown" {
		t.Errorf("nil ref: got %q", got)
	}
}

func TestTargetRefURL(t *testing.T) {
	id := uuid.New()
	for _, tc := range []struct {
		kind TargetKind
		want string
	}{
		{TargetResource, "/resources/" + id.String()},
		{TargetEvent, "/events/" + id.String()},
		{TargetRoom, "/chat/rooms/" + id.String()},
		{TargetMessage, "/chat/messages/" + id.String()},
	} {
		ref := &TargetRef{Kind: tc.kind, ID: id}
		if got := ref.URL(); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.kind, got, tc.want)
		}
	}

	if got := (&TargetRef{Kind: TargetKind("satellite"), ID: id}).URL(); got != "" {
		t.Errorf("unknown kind: got %q", got)
	}
}

func TestTargetRefValid(t *testing.T) {
	if (&TargetRef{Kind: TargetRoom}).Valid() {
		t.Error("nil ID must be invalid")
	}
	if (&TargetRef{Kind: TargetKind("satellite"), ID: uuid.New()}).Valid() {
		t.Error("unknown kind must be invalid")
	}
	if !(&TargetRef{Kind: TargetRoom, ID: uuid.New()}).Valid() {
		t.Error("room ref must be valid")
	}
}

func TestNotificationTargetRoundTrip(t *testing.T) {
	n := &Notification{}
	if n.Target() != nil {
		t.Fatal("empty notification must have no target")
	}

	ref := &TargetRef{Kind: TargetRoom, ID: uuid.New(), Name: "algebra"}
	n.SetTarget(ref)

	got := n.Target()
	if got == nil || got.Kind != TargetRoom || got.ID != ref.ID {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	n.SetTarget(nil)
	if n.Target() != nil || n.TargetType != "" || n.TargetID != nil {
		t.Fatal("SetTarget(nil) must clear the target")
	}
}

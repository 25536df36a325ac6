package onboarding

import (
	"errors"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	moves := map[string]func(Status) (Status, error){
		"accept":  Status.Accept,
		"expire":  Status.Expire,
		"cancel":  Status.Cancel,
		"decline": Status.Decline,
	}
	want := map[string]Status{
		"accept":  StatusAccepted,
		"expire":  StatusExpired,
		"cancel":  StatusCancelled,
		"decline": StatusDeclined,
	}
	for name, move := range moves {
		got, err := move(StatusPending)
		if err != nil || got != want[name] {
			t.Fatalf("%s from pending: %s %v", name, got, err)
		}
		for _, from := range []Status{StatusAccepted, StatusExpired, StatusCancelled, StatusDeclined} {
			got, err := move(from)
			if !errors.Is(err, ErrInvalidTransition) || got != from {
				t.Fatalf("%s from %s: expected ErrInvalidTransition, got %s %v", name, from, got, err)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	for s := range statusNames {
		got, err := ParseStatus(" " + s.String() + " ")
		if err != nil || got != s {
			t.Fatalf("ParseStatus(%s): %s %v", s, got, err)
		}
	}
	if _, err := ParseStatus("revoked"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

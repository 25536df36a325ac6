package onboarding

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle state of an invitation. Pending is the only state
// with outgoing transitions.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusAccepted
	StatusExpired
	StatusCancelled
	StatusDeclined
)

var ErrInvalidTransition = errors.New("onboarding: invalid status transition")

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusAccepted:  "accepted",
	StatusExpired:   "expired",
	StatusCancelled: "cancelled",
	StatusDeclined:  "declined",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s != StatusPending }

func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for s, name := range statusNames {
		if name == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, v)
}

func (s Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("%w: invalid status %d", ErrInvalidInput, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	parsed, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) Accept() (Status, error)  { return s.leave(StatusAccepted) }
func (s Status) Expire() (Status, error)  { return s.leave(StatusExpired) }
func (s Status) Cancel() (Status, error)  { return s.leave(StatusCancelled) }
func (s Status) Decline() (Status, error) { return s.leave(StatusDeclined) }

func (s Status) leave(to Status) (Status, error) {
	if s != StatusPending {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return to, nil
}

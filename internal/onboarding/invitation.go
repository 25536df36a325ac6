package onboarding

import (
	"errors"
	"fmt"
	"time"

	"propdesk.io/internal/directory"
)

// InvitationTTL is how long an invitation stays acceptable after creation.
const InvitationTTL = 7 * 24 * time.Hour

var (
	ErrNotFound           = errors.New("onboarding: invitation not found")
	ErrInvalidInput       = errors.New("onboarding: invalid input")
	ErrInvalidState       = errors.New("onboarding: invitation is no longer pending")
	ErrConflict           = errors.New("onboarding: conflict")
	ErrNotificationFailed = errors.New("onboarding: invitation email could not be sent")
)

// Invitation is a single-use token binding an email address to a prospective
// membership in an organization.
type Invitation struct {
	ID             string           `json:"id"`
	Token          string           `json:"-"`
	Email          string           `json:"email"`
	FullName       string           `json:"full_name,omitempty"`
	OrganizationID string           `json:"organization_id"`
	Role           string           `json:"role"`
	Domain         directory.Domain `json:"domain"`
	InvitedBy      string           `json:"invited_by,omitempty"`
	Status         Status           `json:"status"`
	ExpiresAt      time.Time        `json:"expires_at"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty"`
	AcceptedBy     string           `json:"accepted_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ExpiredAt reports whether the invitation is past its expiry at now. An
// invitation expiring exactly at now is still valid.
func (i Invitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus is the status a reader should see at now: a pending
// invitation past its expiry reads as expired even before it is persisted.
func (i Invitation) EffectiveStatus(now time.Time) Status {
	if i.Status == StatusPending && i.ExpiredAt(now) {
		return StatusExpired
	}
	return i.Status
}

// Rejection explains why an invitation could not be accepted or declined.
type Rejection uint8

const (
	RejectNone Rejection = iota
	RejectNotFound
	RejectAlreadyUsed
	RejectExpired
	RejectEmailMismatch
)

func (r Rejection) Code() string {
	switch r {
	case RejectNone:
		return ""
	case RejectNotFound:
		return "not_found"
	case RejectAlreadyUsed:
		return "invalid_state"
	case RejectExpired:
		return "expired"
	case RejectEmailMismatch:
		return "email_mismatch"
	default:
		return "unknown"
	}
}

// Result is the outcome of Accept or Decline.
type Result struct {
	Accepted      bool
	Rejection     Rejection
	ExpectedEmail string
	Invitation    Invitation
	Membership    directory.Membership
}

// Message is the user-facing explanation for a rejection.
func (r Result) Message() string {
	switch r.Rejection {
	case RejectNone:
		return ""
	case RejectNotFound:
		return "This invitation link is invalid."
	case RejectAlreadyUsed:
		return "This invitation has already been used."
	case RejectExpired:
		return "This invitation has expired. Ask an administrator to send a new one."
	case RejectEmailMismatch:
		return fmt.Sprintf("This invitation was sent to %s. Sign in with that email address to accept it.", r.ExpectedEmail)
	default:
		return "This invitation cannot be used."
	}
}

func rejected(r Rejection) Result { return Result{Rejection: r} }

package onboarding

import (
	"context"
	"time"

	"propdesk.io/internal/directory"
)

// TransitionRequest moves an invitation from one status to another. The store
// applies it only while the invitation is still in From and returns
// ErrInvalidState otherwise.
type TransitionRequest struct {
	From       Status
	To         Status
	At         time.Time
	AcceptedBy string
}

// InvitationStore persists invitations.
//
// LockByToken returns the invitation and, inside Atomically, holds it against
// concurrent acceptance until the unit of work ends.
type InvitationStore interface {
	Create(ctx context.Context, inv *Invitation) error
	Get(ctx context.Context, id string) (Invitation, error)
	FindByToken(ctx context.Context, token string) (Invitation, error)
	LockByToken(ctx context.Context, token string) (Invitation, error)
	ListByOrg(ctx context.Context, orgID string) ([]Invitation, error)
	FindPending(ctx context.Context, email, orgID string) (Invitation, error)
	Transition(ctx context.Context, id string, req TransitionRequest) (Invitation, error)
}

// Store is the unit of work used by the invitation service.
type Store interface {
	Organizations() directory.OrganizationStore
	Memberships() directory.MembershipStore
	Invitations() InvitationStore
	Atomically(ctx context.Context, fn func(Store) error) error
}

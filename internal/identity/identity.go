package identity

import (
	"context"
	"errors"
	"time"

	"propdesk.io/internal/directory"
)

var (
	ErrNotFound           = errors.New("identity: user not found")
	ErrConflict           = errors.New("identity: email already registered")
	ErrInvalidInput       = errors.New("identity: invalid input")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
)

// User is an authenticated identity. DomainTypes and LastMembershipIDs are a
// projection of the user's memberships and are only written by SyncProjection.
type User struct {
	ID                 string                      `json:"id"`
	Email              string                      `json:"email"`
	FullName           string                      `json:"full_name"`
	PasswordHash       string                      `json:"-"`
	DomainTypes        directory.Domain            `json:"-"`
	LastMembershipIDs  map[directory.Domain]string `json:"-"`
	LastDomainSwitchAt *time.Time                  `json:"-"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// Projection returns the cached membership projection.
func (u User) Projection() directory.Projection {
	last := make(map[directory.Domain]string, len(u.LastMembershipIDs))
	for d, id := range u.LastMembershipIDs {
		last[d] = id
	}
	return directory.Projection{Domains: u.DomainTypes, Last: last}
}

// Profile is the self-service registration payload.
type Profile struct {
	Email    string `validate:"required,email,max=320"`
	FullName string `validate:"required,max=200"`
}

// Store persists identities. FindByEmail matches case-insensitively; emails are
// stored lower-case.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) error
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"propdesk.io/internal/directory"
)

const minPasswordLength = 8

// Service is the identity capability consumed by onboarding and the HTTP layer.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs an identity Service.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, validate: validator.New(), now: now}
}

// CreateUser registers a new identity with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, profile Profile, password string) (User, error) {
	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	profile.FullName = strings.TrimSpace(profile.FullName)
	if err := s.validate.Struct(profile); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	if _, err := s.store.FindByEmail(ctx, profile.Email); err == nil {
		return User{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	u := User{
		Email:        profile.Email,
		FullName:     profile.FullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) FindUserByID(ctx context.Context, id string) (User, error) {
	return s.store.FindByID(ctx, strings.TrimSpace(id))
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.store.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// UpdateUser persists profile changes. The membership projection fields are
// carried over from the stored record.
func (s *Service) UpdateUser(ctx context.Context, u User) error {
	current, err := s.store.FindByID(ctx, u.ID)
	if err != nil {
		return err
	}
	u.DomainTypes = current.DomainTypes
	u.LastMembershipIDs = current.LastMembershipIDs
	u.LastDomainSwitchAt = current.LastDomainSwitchAt
	u.UpdatedAt = s.now().UTC()
	return s.store.Update(ctx, u)
}

// Authenticate verifies credentials and returns the identity.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// SyncProjection recomputes the cached domain projection from memberships and
// stores it when it changed.
func (s *Service) SyncProjection(ctx context.Context, userID string, memberships []directory.Membership) (User, error) {
	u, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	next := directory.Project(memberships)
	if projectionEqual(u.Projection(), next) {
		return u, nil
	}
	now := s.now().UTC()
	u.DomainTypes = next.Domains
	u.LastMembershipIDs = next.Last
	u.LastDomainSwitchAt = &now
	u.UpdatedAt = now
	if err := s.store.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func projectionEqual(a, b directory.Projection) bool {
	if a.Domains != b.Domains || len(a.Last) != len(b.Last) {
		return false
	}
	for d, id := range a.Last {
		if b.Last[d] != id {
			return false
		}
	}
	return true
}

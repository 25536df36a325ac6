package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SystemAdmin is a platform-level principal, separate from organization
// memberships.
type SystemAdmin struct {
	ID             string    `json:"id"`
	IdentityUserID string    `json:"identity_user_id"`
	RoleID         string    `json:"role_id"`
	SuperAdmin     bool      `json:"is_super_admin"`
	Active         bool      `json:"active"`
	CreatedBy      string    `json:"created_by,omitempty"`
	UpdatedBy      string    `json:"updated_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AdminGrant is an admin together with its role, as needed by the gate.
type AdminGrant struct {
	Admin SystemAdmin `json:"admin"`
	Role  AdminRole   `json:"role"`
}

// AdminDirectory resolves an identity to its admin grant. It returns
// ErrNotFound when the identity is not an admin.
type AdminDirectory interface {
	FindAdminByIdentity(ctx context.Context, identityUserID string) (AdminGrant, error)
}

// AdminUpdate carries optional field changes.
type AdminUpdate struct {
	RoleID     *string
	SuperAdmin *bool
	Active     *bool
	UpdatedBy  string
}

// AdminStore persists system admins and the admin role catalog.
type AdminStore interface {
	AdminDirectory
	ListRoles(ctx context.Context) ([]AdminRole, error)
	GetRole(ctx context.Context, id string) (AdminRole, error)
	CreateAdmin(ctx context.Context, a *SystemAdmin) error
	GetAdmin(ctx context.Context, id string) (SystemAdmin, error)
	ListAdmins(ctx context.Context) ([]SystemAdmin, error)
	UpdateAdmin(ctx context.Context, id string, upd AdminUpdate) (SystemAdmin, error)
}

// CreateAdminRequest describes a new system admin.
type CreateAdminRequest struct {
	IdentityUserID string
	RoleID         string
	SuperAdmin     bool
	CreatedBy      string
}

// AdminService manages system admins.
type AdminService struct {
	store AdminStore
	now   func() time.Time
}

func NewAdminService(store AdminStore, now func() time.Time) *AdminService {
	if now == nil {
		now = time.Now
	}
	return &AdminService{store: store, now: now}
}

func (s *AdminService) ListRoles(ctx context.Context) ([]AdminRole, error) {
	return s.store.ListRoles(ctx)
}

// CreateSystemAdmin grants admin status to an identity. An identity can hold
// at most one admin record.
func (s *AdminService) CreateSystemAdmin(ctx context.Context, req CreateAdminRequest) (SystemAdmin, error) {
	req.IdentityUserID = strings.TrimSpace(req.IdentityUserID)
	req.RoleID = strings.TrimSpace(req.RoleID)
	if req.IdentityUserID == "" || req.RoleID == "" {
		return SystemAdmin{}, fmt.Errorf("%w: identity_user_id and role_id are required", ErrInvalidInput)
	}
	role, err := s.store.GetRole(ctx, req.RoleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return SystemAdmin{}, fmt.Errorf("%w: unknown role %s", ErrInvalidInput, req.RoleID)
		}
		return SystemAdmin{}, err
	}
	if !role.Active {
		return SystemAdmin{}, fmt.Errorf("%w: role %s is inactive", ErrInvalidInput, req.RoleID)
	}
	now := s.now().UTC()
	a := SystemAdmin{
		IdentityUserID: req.IdentityUserID,
		RoleID:         role.ID,
		SuperAdmin:     req.SuperAdmin,
		Active:         true,
		CreatedBy:      strings.TrimSpace(req.CreatedBy),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateAdmin(ctx, &a); err != nil {
		return SystemAdmin{}, err
	}
	return a, nil
}

func (s *AdminService) GetSystemAdmin(ctx context.Context, id string) (SystemAdmin, error) {
	return s.store.GetAdmin(ctx, strings.TrimSpace(id))
}

func (s *AdminService) ListSystemAdmins(ctx context.Context) ([]SystemAdmin, error) {
	return s.store.ListAdmins(ctx)
}

// SetActive enables or disables an admin. Disabled admins fail every policy.
func (s *AdminService) SetActive(ctx context.Context, id string, active bool, by string) (SystemAdmin, error) {
	return s.store.UpdateAdmin(ctx, strings.TrimSpace(id), AdminUpdate{Active: &active, UpdatedBy: by})
}

// AdminForIdentity returns the admin record held by an identity.
func (s *AdminService) AdminForIdentity(ctx context.Context, identityUserID string) (SystemAdmin, error) {
	grant, err := s.store.FindAdminByIdentity(ctx, strings.TrimSpace(identityUserID))
	if err != nil {
		return SystemAdmin{}, err
	}
	return grant.Admin, nil
}

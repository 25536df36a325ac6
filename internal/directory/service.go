package directory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CreateOrganizationRequest describes a new organization.
type CreateOrganizationRequest struct {
	Name      string `validate:"required,max=200"`
	LegalName string `validate:"max=200"`
	Email     string `validate:"omitempty,email"`
	Phone     string `validate:"max=50"`
	Address   string `validate:"max=500"`
	Domain    Domain
}

// Founder is the identity completing onboarding for a new organization.
type Founder struct {
	IdentityUserID string
	FullName       string
	Email          string
}

// Service implements organization and membership administration.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a directory Service.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, validate: validator.New(), now: now}
}

// CreateOrganization creates an organization together with the founder's
// Admin membership in a single transaction.
func (s *Service) CreateOrganization(ctx context.Context, req CreateOrganizationRequest, founder Founder) (Organization, Membership, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validate.Struct(req); err != nil {
		return Organization{}, Membership{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Domain == 0 {
		req.Domain = DomainManagement
	}
	if !req.Domain.Valid() {
		return Organization{}, Membership{}, fmt.Errorf("%w: invalid domain", ErrInvalidInput)
	}
	if strings.TrimSpace(founder.IdentityUserID) == "" {
		return Organization{}, Membership{}, fmt.Errorf("%w: founder identity is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	org := Organization{
		Name:      req.Name,
		LegalName: strings.TrimSpace(req.LegalName),
		Email:     req.Email,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Domain:    req.Domain,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var member Membership
	err := s.store.Atomically(ctx, func(tx Store) error {
		if err := tx.Organizations().Create(ctx, &org); err != nil {
			return err
		}
		m, _, err := Join(ctx, tx.Memberships(), JoinRequest{
			IdentityUserID: founder.IdentityUserID,
			OrganizationID: org.ID,
			FullName:       founder.FullName,
			Email:          founder.Email,
			Role:           RoleAdmin,
			Domain:         org.Domain,
			At:             now,
		})
		member = m
		return err
	})
	if err != nil {
		return Organization{}, Membership{}, err
	}
	return org, member, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Organizations().Get(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.store.Organizations().List(ctx)
}

// UpdateOrganization applies admin edits. Deactivation goes through
// DeactivateOrganization.
func (s *Service) UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Organization{}, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Organization{}, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		if email != "" {
			if err := s.validate.Var(email, "email"); err != nil {
				return Organization{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
			}
		}
		upd.Email = &email
	}
	upd.Active = nil
	return s.store.Organizations().Update(ctx, id, upd)
}

// DeactivateOrganization soft-deletes an organization.
func (s *Service) DeactivateOrganization(ctx context.Context, id string) (Organization, error) {
	inactive := false
	return s.store.Organizations().Update(ctx, strings.TrimSpace(id), OrganizationUpdate{Active: &inactive})
}

func (s *Service) ListMembers(ctx context.Context, orgID string) ([]Membership, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Memberships().ListByOrg(ctx, orgID)
}

// MembershipsForUser lists a user's memberships across organizations.
func (s *Service) MembershipsForUser(ctx context.Context, identityUserID string) ([]Membership, error) {
	return s.store.Memberships().ListByUser(ctx, identityUserID)
}

// ChangeRole updates the role of a membership belonging to orgID.
func (s *Service) ChangeRole(ctx context.Context, orgID, membershipID, role string) (Membership, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return Membership{}, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	if err := s.ensureInOrg(ctx, orgID, membershipID); err != nil {
		return Membership{}, err
	}
	return s.store.Memberships().Update(ctx, membershipID, MembershipUpdate{Role: &role})
}

// DeactivateMembership soft-deletes a membership belonging to orgID.
func (s *Service) DeactivateMembership(ctx context.Context, orgID, membershipID string) (Membership, error) {
	if err := s.ensureInOrg(ctx, orgID, membershipID); err != nil {
		return Membership{}, err
	}
	inactive := false
	return s.store.Memberships().Update(ctx, membershipID, MembershipUpdate{Active: &inactive})
}

// RecordLogin stamps LastLoginAt on the active membership. Last write wins.
func (s *Service) RecordLogin(ctx context.Context, identityUserID, orgID string) (Membership, error) {
	m, err := s.store.Memberships().FindActive(ctx, identityUserID, orgID)
	if err != nil {
		return Membership{}, err
	}
	at := s.now().UTC()
	return s.store.Memberships().Update(ctx, m.ID, MembershipUpdate{LastLoginAt: &at})
}

func (s *Service) ensureInOrg(ctx context.Context, orgID, membershipID string) error {
	m, err := s.store.Memberships().Get(ctx, strings.TrimSpace(membershipID))
	if err != nil {
		return err
	}
	if m.OrganizationID != orgID {
		return ErrNotFound
	}
	return nil
}

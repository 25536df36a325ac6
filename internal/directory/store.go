package directory

import "context"

// OrganizationStore persists organizations.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Get(ctx context.Context, id string) (Organization, error)
	List(ctx context.Context) ([]Organization, error)
	Update(ctx context.Context, id string, upd OrganizationUpdate) (Organization, error)
}

// MembershipStore persists memberships.
//
// FindActive returns ErrNotFound when the identity has no active membership in
// the organization. Create returns ErrConflict when an active membership for the
// same (identity, organization) pair already exists.
type MembershipStore interface {
	Create(ctx context.Context, m *Membership) error
	Get(ctx context.Context, id string) (Membership, error)
	FindActive(ctx context.Context, identityUserID, orgID string) (Membership, error)
	ListByUser(ctx context.Context, identityUserID string) ([]Membership, error)
	ListByOrg(ctx context.Context, orgID string) ([]Membership, error)
	Update(ctx context.Context, id string, upd MembershipUpdate) (Membership, error)
}

// Store groups the directory stores with a transaction boundary.
type Store interface {
	Organizations() OrganizationStore
	Memberships() MembershipStore
	Atomically(ctx context.Context, fn func(Store) error) error
}

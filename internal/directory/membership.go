package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"propdesk.io/internal/obs"
)

// JoinRequest describes a membership to create when an identity joins an
// organization.
type JoinRequest struct {
	IdentityUserID string
	OrganizationID string
	FullName       string
	Email          string
	Role           string
	Domain         Domain
	At             time.Time
}

// Join creates an active membership, or returns the existing active membership
// for the same (identity, organization) pair. The boolean reports whether a new
// row was created.
func Join(ctx context.Context, memberships MembershipStore, req JoinRequest) (Membership, bool, error) {
	if strings.TrimSpace(req.IdentityUserID) == "" || strings.TrimSpace(req.OrganizationID) == "" {
		return Membership{}, false, fmt.Errorf("%w: identity_user_id and organization_id are required", ErrInvalidInput)
	}
	existing, err := memberships.FindActive(ctx, req.IdentityUserID, req.OrganizationID)
	switch {
	case err == nil:
		obs.Logger().WithFields(logrus.Fields{
			"identity_user_id": req.IdentityUserID,
			"organization_id":  req.OrganizationID,
			"membership_id":    existing.ID,
		}).Warn("membership already exists, reusing")
		return existing, false, nil
	case !errors.Is(err, ErrNotFound):
		return Membership{}, false, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = RoleUser
	}
	at := req.At.UTC()
	m := Membership{
		OrganizationID: req.OrganizationID,
		IdentityUserID: req.IdentityUserID,
		FullName:       strings.TrimSpace(req.FullName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Role:           role,
		Domain:         req.Domain,
		Active:         true,
		LastLoginAt:    &at,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if err := memberships.Create(ctx, &m); err != nil {
		if errors.Is(err, ErrConflict) {
			// a concurrent join committed first; its row is the membership
			existing, findErr := memberships.FindActive(ctx, req.IdentityUserID, req.OrganizationID)
			if findErr != nil {
				return Membership{}, false, findErr
			}
			return existing, false, nil
		}
		return Membership{}, false, err
	}
	return m, true, nil
}

// IsInviterRole reports whether role may invite others. The comparison is
// exact and case-sensitive.
func IsInviterRole(role string) bool {
	return role == RoleAdmin || role == RoleAdministrator
}

// Projection is the read-side view of a user's memberships cached on the
// identity record.
type Projection struct {
	Domains Domain
	Last    map[Domain]string
}

// Project folds active memberships into a Projection. The most recent
// membership per domain is chosen by LastLoginAt, then CreatedAt, then ID.
func Project(memberships []Membership) Projection {
	p := Projection{Last: make(map[Domain]string)}
	best := make(map[Domain]Membership)
	for _, m := range memberships {
		if !m.Active || !m.Domain.Valid() {
			continue
		}
		p.Domains |= m.Domain
		cur, ok := best[m.Domain]
		if !ok || moreRecent(m, cur) {
			best[m.Domain] = m
		}
	}
	for d, m := range best {
		p.Last[d] = m.ID
	}
	return p
}

// Has reports whether the projection shows a completed membership in d.
func (p Projection) Has(d Domain) bool {
	return p.Domains&d != 0 && p.Last[d] != ""
}

func moreRecent(a, b Membership) bool {
	at, bt := activity(a), activity(b)
	if !at.Equal(bt) {
		return at.After(bt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func activity(m Membership) time.Time {
	if m.LastLoginAt != nil {
		return *m.LastLoginAt
	}
	return m.CreatedAt
}

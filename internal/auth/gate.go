package auth

import (
	"context"
	"errors"

	"propdesk.io/internal/obs"
)

// Gate decides whether an identity satisfies a policy. It never mutates state.
type Gate struct {
	admins AdminDirectory
}

func NewGate(admins AdminDirectory) *Gate {
	return &Gate{admins: admins}
}

// Authorize evaluates policy for id. A non-nil error means the admin lookup
// failed and the caller must deny.
func (g *Gate) Authorize(ctx context.Context, id Identity, policy Policy) (bool, error) {
	ok, err := g.decide(ctx, id, policy)
	if err != nil {
		return false, err
	}
	obs.AuthorizationDecision(policy.Name, ok)
	return ok, nil
}

func (g *Gate) decide(ctx context.Context, id Identity, policy Policy) (bool, error) {
	if !id.Authenticated || id.UserID == "" {
		return false, nil
	}
	grant, err := g.admins.FindAdminByIdentity(ctx, id.UserID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !grant.Admin.Active {
		return false, nil
	}
	if policy.Permission == 0 {
		return true, nil
	}
	if grant.Admin.SuperAdmin {
		return true, nil
	}
	return HasPermission(grant.Role, policy.Permission), nil
}

package memory

import (
	"context"
	"sort"

	"propdesk.io/internal/ids"
	"propdesk.io/internal/onboarding"
)

type invitationTable struct{ v view }

func (t invitationTable) Create(_ context.Context, inv *onboarding.Invitation) error {
	return t.v.read(func(d *tenancy) error {
		if _, ok := d.orgs[inv.OrganizationID]; !ok {
			return onboarding.ErrNotFound
		}
		for _, existing := range d.invitations {
			if existing.Token == inv.Token {
				return onboarding.ErrConflict
			}
		}
		if inv.ID == "" {
			inv.ID = ids.New()
		}
		d.invitations[inv.ID] = *inv
		return nil
	})
}

func (t invitationTable) Get(_ context.Context, id string) (onboarding.Invitation, error) {
	return t.find(func(inv onboarding.Invitation) bool { return inv.ID == id })
}

func (t invitationTable) FindByToken(_ context.Context, token string) (onboarding.Invitation, error) {
	return t.find(func(inv onboarding.Invitation) bool { return inv.Token == token })
}

// LockByToken relies on the unit-of-work lock held by Atomically.
func (t invitationTable) LockByToken(ctx context.Context, token string) (onboarding.Invitation, error) {
	return t.FindByToken(ctx, token)
}

func (t invitationTable) FindPending(_ context.Context, email, orgID string) (onboarding.Invitation, error) {
	list, err := t.list(func(inv onboarding.Invitation) bool {
		return inv.Status == onboarding.StatusPending && inv.Email == email && inv.OrganizationID == orgID
	})
	if err != nil {
		return onboarding.Invitation{}, err
	}
	if len(list) == 0 {
		return onboarding.Invitation{}, onboarding.ErrNotFound
	}
	return list[0], nil
}

func (t invitationTable) ListByOrg(_ context.Context, orgID string) ([]onboarding.Invitation, error) {
	return t.list(func(inv onboarding.Invitation) bool { return inv.OrganizationID == orgID })
}

func (t invitationTable) Transition(_ context.Context, id string, req onboarding.TransitionRequest) (onboarding.Invitation, error) {
	var out onboarding.Invitation
	err := t.v.read(func(d *tenancy) error {
		inv, ok := d.invitations[id]
		if !ok {
			return onboarding.ErrNotFound
		}
		if inv.Status != req.From {
			return onboarding.ErrInvalidState
		}
		at := req.At.UTC()
		inv.Status = req.To
		inv.UpdatedAt = at
		if req.To == onboarding.StatusAccepted {
			inv.AcceptedAt = &at
			inv.AcceptedBy = req.AcceptedBy
		}
		d.invitations[id] = inv
		out = inv
		return nil
	})
	return out, err
}

func (t invitationTable) find(match func(onboarding.Invitation) bool) (onboarding.Invitation, error) {
	var out onboarding.Invitation
	err := t.v.read(func(d *tenancy) error {
		for _, inv := range d.invitations {
			if match(inv) {
				out = inv
				return nil
			}
		}
		return onboarding.ErrNotFound
	})
	return out, err
}

// list returns matches newest first.
func (t invitationTable) list(match func(onboarding.Invitation) bool) ([]onboarding.Invitation, error) {
	var out []onboarding.Invitation
	err := t.v.read(func(d *tenancy) error {
		for _, inv := range d.invitations {
			if match(inv) {
				out = append(out, inv)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, err
}

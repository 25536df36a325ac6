package memory

import (
	"context"
	"sort"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/ids"
)

type orgTable struct{ v view }

func (t orgTable) Create(_ context.Context, org *directory.Organization) error {
	return t.v.read(func(d *tenancy) error {
		if org.ID == "" {
			org.ID = ids.New()
		}
		if _, ok := d.orgs[org.ID]; ok {
			return directory.ErrConflict
		}
		d.orgs[org.ID] = *org
		return nil
	})
}

func (t orgTable) Get(_ context.Context, id string) (directory.Organization, error) {
	var out directory.Organization
	err := t.v.read(func(d *tenancy) error {
		org, ok := d.orgs[id]
		if !ok {
			return directory.ErrNotFound
		}
		out = org
		return nil
	})
	return out, err
}

func (t orgTable) List(_ context.Context) ([]directory.Organization, error) {
	var out []directory.Organization
	err := t.v.read(func(d *tenancy) error {
		for _, org := range d.orgs {
			out = append(out, org)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (t orgTable) Update(_ context.Context, id string, upd directory.OrganizationUpdate) (directory.Organization, error) {
	var out directory.Organization
	err := t.v.read(func(d *tenancy) error {
		org, ok := d.orgs[id]
		if !ok {
			return directory.ErrNotFound
		}
		if upd.Name != nil {
			org.Name = *upd.Name
		}
		if upd.LegalName != nil {
			org.LegalName = *upd.LegalName
		}
		if upd.Email != nil {
			org.Email = *upd.Email
		}
		if upd.Phone != nil {
			org.Phone = *upd.Phone
		}
		if upd.Address != nil {
			org.Address = *upd.Address
		}
		if upd.Active != nil {
			org.Active = *upd.Active
		}
		org.UpdatedAt = t.v.s.now().UTC()
		d.orgs[id] = org
		out = org
		return nil
	})
	return out, err
}

type membershipTable struct{ v view }

func (t membershipTable) Create(_ context.Context, m *directory.Membership) error {
	return t.v.read(func(d *tenancy) error {
		if m.Active {
			for _, existing := range d.memberships {
				if existing.Active && existing.IdentityUserID == m.IdentityUserID && existing.OrganizationID == m.OrganizationID {
					return directory.ErrConflict
				}
			}
		}
		if _, ok := d.orgs[m.OrganizationID]; !ok {
			return directory.ErrNotFound
		}
		if m.ID == "" {
			m.ID = ids.New()
		}
		d.memberships[m.ID] = *m
		return nil
	})
}

func (t membershipTable) Get(_ context.Context, id string) (directory.Membership, error) {
	var out directory.Membership
	err := t.v.read(func(d *tenancy) error {
		m, ok := d.memberships[id]
		if !ok {
			return directory.ErrNotFound
		}
		out = m
		return nil
	})
	return out, err
}

func (t membershipTable) FindActive(_ context.Context, identityUserID, orgID string) (directory.Membership, error) {
	var out directory.Membership
	err := t.v.read(func(d *tenancy) error {
		for _, m := range d.memberships {
			if m.Active && m.IdentityUserID == identityUserID && m.OrganizationID == orgID {
				out = m
				return nil
			}
		}
		return directory.ErrNotFound
	})
	return out, err
}

func (t membershipTable) ListByUser(_ context.Context, identityUserID string) ([]directory.Membership, error) {
	return t.filter(func(m directory.Membership) bool { return m.IdentityUserID == identityUserID })
}

func (t membershipTable) ListByOrg(_ context.Context, orgID string) ([]directory.Membership, error) {
	return t.filter(func(m directory.Membership) bool { return m.OrganizationID == orgID })
}

func (t membershipTable) filter(keep func(directory.Membership) bool) ([]directory.Membership, error) {
	var out []directory.Membership
	err := t.v.read(func(d *tenancy) error {
		for _, m := range d.memberships {
			if keep(m) {
				out = append(out, m)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (t membershipTable) Update(_ context.Context, id string, upd directory.MembershipUpdate) (directory.Membership, error) {
	var out directory.Membership
	err := t.v.read(func(d *tenancy) error {
		m, ok := d.memberships[id]
		if !ok {
			return directory.ErrNotFound
		}
		if upd.Role != nil {
			m.Role = *upd.Role
		}
		if upd.FullName != nil {
			m.FullName = *upd.FullName
		}
		if upd.Active != nil {
			m.Active = *upd.Active
		}
		if upd.LastLoginAt != nil {
			at := *upd.LastLoginAt
			m.LastLoginAt = &at
		}
		m.UpdatedAt = t.v.s.now().UTC()
		d.memberships[id] = m
		out = m
		return nil
	})
	return out, err
}

package memory

import (
	"context"
	"sort"

	"propdesk.io/internal/auth"
	"propdesk.io/internal/ids"
)

type adminTable struct{ s *Store }

func (t adminTable) ListRoles(_ context.Context) ([]auth.AdminRole, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	out := make([]auth.AdminRole, 0, len(t.s.roles))
	for _, r := range t.s.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t adminTable) GetRole(_ context.Context, id string) (auth.AdminRole, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	r, ok := t.s.roles[id]
	if !ok {
		return auth.AdminRole{}, auth.ErrNotFound
	}
	return r, nil
}

func (t adminTable) CreateAdmin(_ context.Context, a *auth.SystemAdmin) error {
	t.s.idMu.Lock()
	defer t.s.idMu.Unlock()
	for _, existing := range t.s.admins {
		if existing.IdentityUserID == a.IdentityUserID {
			return auth.ErrConflict
		}
	}
	if _, ok := t.s.roles[a.RoleID]; !ok {
		return auth.ErrNotFound
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	t.s.admins[a.ID] = *a
	return nil
}

func (t adminTable) GetAdmin(_ context.Context, id string) (auth.SystemAdmin, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	a, ok := t.s.admins[id]
	if !ok {
		return auth.SystemAdmin{}, auth.ErrNotFound
	}
	return a, nil
}

func (t adminTable) ListAdmins(_ context.Context) ([]auth.SystemAdmin, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	out := make([]auth.SystemAdmin, 0, len(t.s.admins))
	for _, a := range t.s.admins {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t adminTable) UpdateAdmin(_ context.Context, id string, upd auth.AdminUpdate) (auth.SystemAdmin, error) {
	t.s.idMu.Lock()
	defer t.s.idMu.Unlock()
	a, ok := t.s.admins[id]
	if !ok {
		return auth.SystemAdmin{}, auth.ErrNotFound
	}
	if upd.RoleID != nil {
		if _, ok := t.s.roles[*upd.RoleID]; !ok {
			return auth.SystemAdmin{}, auth.ErrNotFound
		}
		a.RoleID = *upd.RoleID
	}
	if upd.SuperAdmin != nil {
		a.SuperAdmin = *upd.SuperAdmin
	}
	if upd.Active != nil {
		a.Active = *upd.Active
	}
	a.UpdatedBy = upd.UpdatedBy
	a.UpdatedAt = t.s.now().UTC()
	t.s.admins[id] = a
	return a, nil
}

func (t adminTable) FindAdminByIdentity(_ context.Context, identityUserID string) (auth.AdminGrant, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	for _, a := range t.s.admins {
		if a.IdentityUserID != identityUserID {
			continue
		}
		role, ok := t.s.roles[a.RoleID]
		if !ok {
			return auth.AdminGrant{}, auth.ErrNotFound
		}
		return auth.AdminGrant{Admin: a, Role: role}, nil
	}
	return auth.AdminGrant{}, auth.ErrNotFound
}

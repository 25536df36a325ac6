package memory

import (
	"context"
	"strings"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/ids"
)

type userTable struct{ s *Store }

func (t userTable) Create(_ context.Context, u *identity.User) error {
	t.s.idMu.Lock()
	defer t.s.idMu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range t.s.users {
		if existing.Email == u.Email {
			return identity.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	t.s.users[u.ID] = copyUser(*u)
	return nil
}

func (t userTable) FindByID(_ context.Context, id string) (identity.User, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	u, ok := t.s.users[id]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return copyUser(u), nil
}

func (t userTable) FindByEmail(_ context.Context, email string) (identity.User, error) {
	t.s.idMu.RLock()
	defer t.s.idMu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range t.s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return identity.User{}, identity.ErrNotFound
}

func (t userTable) Update(_ context.Context, u identity.User) error {
	t.s.idMu.Lock()
	defer t.s.idMu.Unlock()
	if _, ok := t.s.users[u.ID]; !ok {
		return identity.ErrNotFound
	}
	u.Email = strings.ToLower(u.Email)
	for id, existing := range t.s.users {
		if id != u.ID && existing.Email == u.Email {
			return identity.ErrConflict
		}
	}
	t.s.users[u.ID] = copyUser(u)
	return nil
}

func copyUser(u identity.User) identity.User {
	if u.LastMembershipIDs != nil {
		last := make(map[directory.Domain]string, len(u.LastMembershipIDs))
		for d, id := range u.LastMembershipIDs {
			last[d] = id
		}
		u.LastMembershipIDs = last
	}
	return u
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubAdminStore struct {
	fakeDirectory
	roles  map[string]AdminRole
	admins []SystemAdmin
}

func (s *stubAdminStore) ListRoles(context.Context) ([]AdminRole, error) {
	var out []AdminRole
	for _, r := range s.roles {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubAdminStore) GetRole(_ context.Context, id string) (AdminRole, error) {
	r, ok := s.roles[id]
	if !ok {
		return AdminRole{}, ErrNotFound
	}
	return r, nil
}

func (s *stubAdminStore) CreateAdmin(_ context.Context, a *SystemAdmin) error {
	for _, existing := range s.admins {
		if existing.IdentityUserID == a.IdentityUserID {
			return ErrConflict
		}
	}
	a.ID = "admin-1"
	s.admins = append(s.admins, *a)
	return nil
}

func (s *stubAdminStore) GetAdmin(_ context.Context, id string) (SystemAdmin, error) {
	for _, a := range s.admins {
		if a.ID == id {
			return a, nil
		}
	}
	return SystemAdmin{}, ErrNotFound
}

func (s *stubAdminStore) ListAdmins(context.Context) ([]SystemAdmin, error) { return s.admins, nil }

func (s *stubAdminStore) UpdateAdmin(context.Context, string, AdminUpdate) (SystemAdmin, error) {
	return SystemAdmin{}, ErrNotFound
}

func TestCreateSystemAdmin(t *testing.T) {
	store := &stubAdminStore{roles: map[string]AdminRole{
		"role_support": {ID: "role_support", ManageSupport: true, Active: true},
		"role_retired": {ID: "role_retired"},
	}}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewAdminService(store, func() time.Time { return fixed })
	ctx := context.Background()

	a, err := svc.CreateSystemAdmin(ctx, CreateAdminRequest{IdentityUserID: " user-1 ", RoleID: "role_support", CreatedBy: "root"})
	if err != nil {
		t.Fatalf("CreateSystemAdmin: %v", err)
	}
	if a.IdentityUserID != "user-1" || !a.Active || a.SuperAdmin || !a.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected admin %+v", a)
	}
	if _, err := svc.CreateSystemAdmin(ctx, CreateAdminRequest{IdentityUserID: "user-1", RoleID: "role_support"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := svc.CreateSystemAdmin(ctx, CreateAdminRequest{IdentityUserID: "user-2", RoleID: "missing"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown role, got %v", err)
	}
	if _, err := svc.CreateSystemAdmin(ctx, CreateAdminRequest{IdentityUserID: "user-2", RoleID: "role_retired"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inactive role, got %v", err)
	}
	got, err := svc.GetSystemAdmin(ctx, a.ID)
	if err != nil || got.ID != a.ID {
		t.Fatalf("GetSystemAdmin: %+v %v", got, err)
	}
}

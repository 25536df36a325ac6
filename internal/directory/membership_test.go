package directory_test

import (
	"context"
	"testing"
	"time"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/store/memory"
)

func TestJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New().Directory()
	org := directory.Organization{Name: "Acme", Domain: directory.DomainOwner, Active: true}
	if err := store.Organizations().Create(ctx, &org); err != nil {
		t.Fatalf("create org: %v", err)
	}
	req := directory.JoinRequest{
		IdentityUserID: "user-1",
		OrganizationID: org.ID,
		Email:          " Joiner@Example.com ",
		Domain:         org.Domain,
		At:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	first, created, err := directory.Join(ctx, store.Memberships(), req)
	if err != nil || !created {
		t.Fatalf("first join: created=%v err=%v", created, err)
	}
	if first.Role != directory.RoleUser || first.Email != "joiner@example.com" || !first.Active {
		t.Fatalf("unexpected membership %+v", first)
	}
	second, created, err := directory.Join(ctx, store.Memberships(), req)
	if err != nil || created {
		t.Fatalf("second join: created=%v err=%v", created, err)
	}
	if second.ID != first.ID {
		t.Fatalf("second join returned %s, want %s", second.ID, first.ID)
	}
	all, _ := store.Memberships().ListByUser(ctx, "user-1")
	if len(all) != 1 {
		t.Fatalf("expected one membership, got %d", len(all))
	}
}

func TestIsInviterRole(t *testing.T) {
	cases := map[string]bool{
		"Admin":         true,
		"Administrator": true,
		"admin":         false,
		"Admin ":        false,
		"User":          false,
		"":              false,
	}
	for role, want := range cases {
		if got := directory.IsInviterRole(role); got != want {
			t.Fatalf("IsInviterRole(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestProjectIgnoresInactive(t *testing.T) {
	p := directory.Project([]directory.Membership{
		{ID: "a", Domain: directory.DomainTenant, Active: false},
	})
	if p.Has(directory.DomainTenant) || p.Domains != 0 {
		t.Fatalf("inactive membership projected: %+v", p)
	}
}

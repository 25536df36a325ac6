// Package memory provides in-process implementations of every store
// interface. It backs tests and local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/onboarding"
)

// Store holds all data in maps. Organizations, memberships and invitations
// share one lock so Atomically can serialize units of work over them;
// identities, admins and activity are guarded separately.
type Store struct {
	mu   sync.Mutex
	data *tenancy

	idMu     sync.RWMutex
	users    map[string]identity.User
	roles    map[string]auth.AdminRole
	admins   map[string]auth.SystemAdmin
	activity []audit.Entry

	now func() time.Time
}

type tenancy struct {
	orgs        map[string]directory.Organization
	memberships map[string]directory.Membership
	invitations map[string]onboarding.Invitation
}

func (t *tenancy) clone() *tenancy {
	c := &tenancy{
		orgs:        make(map[string]directory.Organization, len(t.orgs)),
		memberships: make(map[string]directory.Membership, len(t.memberships)),
		invitations: make(map[string]onboarding.Invitation, len(t.invitations)),
	}
	for k, v := range t.orgs {
		c.orgs[k] = v
	}
	for k, v := range t.memberships {
		c.memberships[k] = v
	}
	for k, v := range t.invitations {
		c.invitations[k] = v
	}
	return c
}

// New returns an empty store seeded with the built-in admin roles.
func New() *Store {
	s := &Store{
		data: &tenancy{
			orgs:        make(map[string]directory.Organization),
			memberships: make(map[string]directory.Membership),
			invitations: make(map[string]onboarding.Invitation),
		},
		users:  make(map[string]identity.User),
		roles:  make(map[string]auth.AdminRole),
		admins: make(map[string]auth.SystemAdmin),
		now:    time.Now,
	}
	seeded := s.now().UTC()
	for _, r := range auth.BuiltinRoles() {
		r.CreatedAt = seeded
		s.roles[r.ID] = r
	}
	return s
}

// view is a handle on the tenancy data. Inside Atomically the lock is
// already held by the unit of work.
type view struct {
	s      *Store
	locked bool
}

func (v view) read(fn func(d *tenancy) error) error {
	if !v.locked {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.data)
}

func (s *Store) atomically(fn func(view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(view{s: s, locked: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

var (
	_ directory.Store  = directoryView{}
	_ onboarding.Store = onboardingView{}
	_ identity.Store   = userTable{}
	_ auth.AdminStore  = adminTable{}
	_ audit.Store      = activityTable{}
)

// Directory adapts the store to directory.Store.
func (s *Store) Directory() directory.Store { return directoryView{view{s: s}} }

// Onboarding adapts the store to onboarding.Store.
func (s *Store) Onboarding() onboarding.Store { return onboardingView{view{s: s}} }

// Identities adapts the store to identity.Store.
func (s *Store) Identities() identity.Store { return userTable{s} }

// Admins adapts the store to auth.AdminStore.
func (s *Store) Admins() auth.AdminStore { return adminTable{s} }

// Activity adapts the store to audit.Store.
func (s *Store) Activity() audit.Store { return activityTable{s} }

type directoryView struct{ v view }

func (d directoryView) Organizations() directory.OrganizationStore { return orgTable{d.v} }
func (d directoryView) Memberships() directory.MembershipStore     { return membershipTable{d.v} }

func (d directoryView) Atomically(_ context.Context, fn func(directory.Store) error) error {
	if d.v.locked {
		return fn(d)
	}
	return d.v.s.atomically(func(tx view) error { return fn(directoryView{tx}) })
}

type onboardingView struct{ v view }

func (o onboardingView) Organizations() directory.OrganizationStore { return orgTable{o.v} }
func (o onboardingView) Memberships() directory.MembershipStore     { return membershipTable{o.v} }
func (o onboardingView) Invitations() onboarding.InvitationStore    { return invitationTable{o.v} }

func (o onboardingView) Atomically(_ context.Context, fn func(onboarding.Store) error) error {
	if o.v.locked {
		return fn(o)
	}
	return o.v.s.atomically(func(tx view) error { return fn(onboardingView{tx}) })
}

package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/ids"
	"propdesk.io/internal/notify"
	"propdesk.io/internal/obs"
)

// Identities is the identity capability the invitation flow depends on.
type Identities interface {
	FindUserByID(ctx context.Context, id string) (identity.User, error)
	SyncProjection(ctx context.Context, userID string, memberships []directory.Membership) (identity.User, error)
}

// CreateRequest describes a new invitation.
type CreateRequest struct {
	OrganizationID string `validate:"required"`
	InvitedBy      string
	Email          string `validate:"required,email,max=320"`
	FullName       string `validate:"max=200"`
	Role           string `validate:"max=64"`
}

// Service is the only place invitation status changes happen.
type Service struct {
	store      Store
	identities Identities
	mailer     notify.Mailer
	baseURL    string
	validate   *validator.Validate
	now        func() time.Time
	newToken   func() (string, error)
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMailer sets the mailer used by SendInvitation.
func WithMailer(m notify.Mailer) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithPublicBaseURL sets the origin used to build accept links.
func WithPublicBaseURL(base string) ServiceOption {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithTokenSource overrides token generation.
func WithTokenSource(fn func() (string, error)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newToken = fn
		}
	}
}

// NewService constructs an invitation Service.
func NewService(store Store, identities Identities, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		identities: identities,
		mailer:     notify.LogMailer{},
		baseURL:    "http://localhost:8080",
		validate:   validator.New(),
		now:        time.Now,
		newToken:   ids.Token,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvitation stores a new pending invitation. Callers are responsible
// for checking CanUserInvite first. Existing pending invitations for the same
// email are left alone.
func (s *Service) CreateInvitation(ctx context.Context, req CreateRequest) (Invitation, error) {
	req.OrganizationID = strings.TrimSpace(req.OrganizationID)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.Role = strings.TrimSpace(req.Role)
	if err := s.validate.Struct(req); err != nil {
		return Invitation{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Role == "" {
		req.Role = directory.RoleUser
	}

	org, err := s.store.Organizations().Get(ctx, req.OrganizationID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Invitation{}, fmt.Errorf("%w: organization %s", ErrNotFound, req.OrganizationID)
		}
		return Invitation{}, err
	}
	if !org.Active {
		return Invitation{}, fmt.Errorf("%w: organization is inactive", ErrInvalidInput)
	}

	token, err := s.newToken()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate token: %w", err)
	}
	now := s.now().UTC()
	inv := Invitation{
		Token:          token,
		Email:          req.Email,
		FullName:       req.FullName,
		OrganizationID: org.ID,
		Role:           req.Role,
		Domain:         org.Domain,
		InvitedBy:      strings.TrimSpace(req.InvitedBy),
		Status:         StatusPending,
		ExpiresAt:      now.Add(InvitationTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Invitations().Create(ctx, &inv); err != nil {
		return Invitation{}, err
	}
	obs.InvitationEvent("created")
	return inv, nil
}

// AcceptURL returns the link presented to the invitee.
func (s *Service) AcceptURL(token string) string {
	return s.baseURL + "/invite/accept?" + url.Values{"token": {token}}.Encode()
}

// SendInvitation emails the accept link for inv. A failure leaves the
// invitation in place and is reported as ErrNotificationFailed.
func (s *Service) SendInvitation(ctx context.Context, inv Invitation) error {
	org, err := s.store.Organizations().Get(ctx, inv.OrganizationID)
	if err != nil {
		return err
	}
	subject, body, err := notify.RenderInvitation(notify.InvitationEmail{
		OrganizationName: org.Name,
		InviteeName:      inv.FullName,
		Role:             inv.Role,
		AcceptURL:        s.AcceptURL(inv.Token),
		ExpiresAt:        inv.ExpiresAt,
		ValidFor:         InvitationTTL,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	if err := s.mailer.Send(ctx, inv.Email, subject, body); err != nil {
		obs.NotificationFailed()
		obs.Logger().WithFields(logrus.Fields{
			"invitation_id":   inv.ID,
			"organization_id": inv.OrganizationID,
		}).WithError(err).Warn("invitation email failed")
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

// errLostRace aborts the unit of work when the conditional transition finds
// the invitation already moved on.
var errLostRace = errors.New("onboarding: invitation changed concurrently")

// Accept runs the acceptance checks in order (existence, status, expiry,
// email match) and, when they all pass, joins the organization and marks the
// invitation accepted in one unit of work. A failed check is reported through
// Result.Rejection; only store failures are returned as errors.
func (s *Service) Accept(ctx context.Context, token, identityUserID, fullName string) (Result, error) {
	token = strings.TrimSpace(token)
	identityUserID = strings.TrimSpace(identityUserID)
	if token == "" {
		return rejected(RejectNotFound), nil
	}
	if identityUserID == "" {
		return Result{}, fmt.Errorf("%w: identity_user_id is required", ErrInvalidInput)
	}

	inviteeEmail, err := s.inviteeEmail(ctx, identityUserID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.store.Atomically(ctx, func(tx Store) error {
		inv, rej, err := s.lockPending(ctx, tx, token)
		if err != nil || rej != RejectNone {
			res = Result{Rejection: rej, Invitation: inv}
			return err
		}
		if rej := checkInvitee(inv, inviteeEmail); rej != RejectNone {
			res = Result{Rejection: rej, Invitation: inv, ExpectedEmail: inv.Email}
			return nil
		}

		org, err := tx.Organizations().Get(ctx, inv.OrganizationID)
		if errors.Is(err, directory.ErrNotFound) || (err == nil && !org.Active) {
			res = rejected(RejectNotFound)
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now().UTC()
		member, _, err := directory.Join(ctx, tx.Memberships(), directory.JoinRequest{
			IdentityUserID: identityUserID,
			OrganizationID: org.ID,
			FullName:       firstNonEmpty(fullName, inv.FullName),
			Email:          inv.Email,
			Role:           inv.Role,
			Domain:         org.Domain,
			At:             now,
		})
		if err != nil {
			return err
		}

		to, err := inv.Status.Accept()
		if err != nil {
			return errLostRace
		}
		updated, err := tx.Invitations().Transition(ctx, inv.ID, TransitionRequest{
			From:       inv.Status,
			To:         to,
			At:         now,
			AcceptedBy: identityUserID,
		})
		if errors.Is(err, ErrInvalidState) {
			return errLostRace
		}
		if err != nil {
			return err
		}
		res = Result{Accepted: true, Invitation: updated, Membership: member}
		return nil
	})
	if errors.Is(err, errLostRace) {
		obs.InvitationEvent(RejectAlreadyUsed.Code())
		return rejected(RejectAlreadyUsed), nil
	}
	if err != nil {
		obs.InvitationEvent("error")
		return Result{}, err
	}
	if !res.Accepted {
		obs.InvitationEvent(res.Rejection.Code())
		return res, nil
	}
	obs.InvitationEvent("accepted")
	s.RefreshProjection(ctx, identityUserID)
	return res, nil
}

// AcceptInvitation is Accept reduced to a boolean. Errors are logged and
// reported as false.
func (s *Service) AcceptInvitation(ctx context.Context, token, identityUserID, fullName string) bool {
	res, err := s.Accept(ctx, token, identityUserID, fullName)
	if err != nil {
		obs.Logger().WithError(err).WithField("identity_user_id", identityUserID).Error("accept invitation failed")
		return false
	}
	return res.Accepted
}

// Decline marks a pending invitation declined on behalf of its invitee.
func (s *Service) Decline(ctx context.Context, token, identityUserID string) (Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return rejected(RejectNotFound), nil
	}
	inviteeEmail, err := s.inviteeEmail(ctx, identityUserID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.store.Atomically(ctx, func(tx Store) error {
		inv, rej, err := s.lockPending(ctx, tx, token)
		if err != nil || rej != RejectNone {
			res = Result{Rejection: rej, Invitation: inv}
			return err
		}
		if rej := checkInvitee(inv, inviteeEmail); rej != RejectNone {
			res = Result{Rejection: rej, Invitation: inv, ExpectedEmail: inv.Email}
			return nil
		}
		to, err := inv.Status.Decline()
		if err != nil {
			return errLostRace
		}
		updated, err := tx.Invitations().Transition(ctx, inv.ID, TransitionRequest{From: inv.Status, To: to, At: s.now().UTC()})
		if errors.Is(err, ErrInvalidState) {
			return errLostRace
		}
		if err != nil {
			return err
		}
		res = Result{Invitation: updated}
		return nil
	})
	if errors.Is(err, errLostRace) {
		return rejected(RejectAlreadyUsed), nil
	}
	if err != nil {
		return Result{}, err
	}
	if res.Rejection == RejectNone {
		obs.InvitationEvent("declined")
	}
	return res, nil
}

// Cancel withdraws a pending invitation belonging to orgID. A pending
// invitation already past its expiry is marked expired instead and reported
// as ErrInvalidState.
func (s *Service) Cancel(ctx context.Context, orgID, invitationID string) (Invitation, error) {
	inv, err := s.store.Invitations().Get(ctx, strings.TrimSpace(invitationID))
	if err != nil {
		return Invitation{}, err
	}
	if inv.OrganizationID != strings.TrimSpace(orgID) {
		return Invitation{}, ErrNotFound
	}
	if inv.Status == StatusPending && inv.ExpiredAt(s.now()) {
		if _, err := s.expire(ctx, s.store, inv); err != nil {
			return Invitation{}, err
		}
		return Invitation{}, fmt.Errorf("%w: invitation %s has expired", ErrInvalidState, inv.ID)
	}
	to, err := inv.Status.Cancel()
	if err != nil {
		return Invitation{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	updated, err := s.store.Invitations().Transition(ctx, inv.ID, TransitionRequest{From: inv.Status, To: to, At: s.now().UTC()})
	if err != nil {
		return Invitation{}, err
	}
	obs.InvitationEvent("cancelled")
	return updated, nil
}

// Validate looks up an invitation for display before acceptance. A pending
// invitation found past its expiry is marked expired.
func (s *Service) Validate(ctx context.Context, token string) (Invitation, Rejection, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Invitation{}, RejectNotFound, nil
	}
	inv, err := s.store.Invitations().FindByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Invitation{}, RejectNotFound, nil
	}
	if err != nil {
		return Invitation{}, RejectNone, err
	}
	switch {
	case inv.Status == StatusExpired:
		return inv, RejectExpired, nil
	case inv.Status != StatusPending:
		return inv, RejectAlreadyUsed, nil
	case inv.ExpiredAt(s.now()):
		expired, err := s.expire(ctx, s.store, inv)
		if err != nil {
			return Invitation{}, RejectNone, err
		}
		return expired, RejectExpired, nil
	}
	return inv, RejectNone, nil
}

// PendingInvitationFor returns the newest pending, unexpired invitation for
// email in orgID. It backs duplicate warnings only and never blocks creation.
func (s *Service) PendingInvitationFor(ctx context.Context, email, orgID string) (Invitation, bool, error) {
	inv, err := s.store.Invitations().FindPending(ctx, strings.ToLower(strings.TrimSpace(email)), strings.TrimSpace(orgID))
	if errors.Is(err, ErrNotFound) {
		return Invitation{}, false, nil
	}
	if err != nil {
		return Invitation{}, false, err
	}
	if inv.ExpiredAt(s.now()) {
		return Invitation{}, false, nil
	}
	return inv, true, nil
}

// ListInvitations returns an organization's invitations, newest first, with
// overdue pending invitations reported as expired.
func (s *Service) ListInvitations(ctx context.Context, orgID string) ([]Invitation, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	list, err := s.store.Invitations().ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		list[i].Status = list[i].EffectiveStatus(now)
	}
	return list, nil
}

// HasCompletedOnboarding reports whether the user's membership projection
// shows a membership in domain.
func (s *Service) HasCompletedOnboarding(ctx context.Context, identityUserID string, domain directory.Domain) (bool, error) {
	if !domain.Valid() {
		return false, fmt.Errorf("%w: invalid domain", ErrInvalidInput)
	}
	u, err := s.identities.FindUserByID(ctx, identityUserID)
	if errors.Is(err, identity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Projection().Has(domain), nil
}

// CanUserInvite reports whether the identity holds an active Admin or
// Administrator membership in orgID.
func (s *Service) CanUserInvite(ctx context.Context, identityUserID, orgID string) (bool, error) {
	m, err := s.store.Memberships().FindActive(ctx, strings.TrimSpace(identityUserID), strings.TrimSpace(orgID))
	if errors.Is(err, directory.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return directory.IsInviterRole(m.Role), nil
}

// lockPending loads and locks the invitation and applies the status and
// expiry checks. An overdue pending invitation is marked expired.
func (s *Service) lockPending(ctx context.Context, tx Store, token string) (Invitation, Rejection, error) {
	inv, err := tx.Invitations().LockByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Invitation{}, RejectNotFound, nil
	}
	if err != nil {
		return Invitation{}, RejectNone, err
	}
	if inv.Status == StatusExpired {
		return inv, RejectExpired, nil
	}
	if inv.Status != StatusPending {
		return inv, RejectAlreadyUsed, nil
	}
	if inv.ExpiredAt(s.now()) {
		expired, err := s.expire(ctx, tx, inv)
		if err != nil {
			return Invitation{}, RejectNone, err
		}
		return expired, RejectExpired, nil
	}
	return inv, RejectNone, nil
}

// inviteeEmail resolves the caller's email before a unit of work starts so
// the lookup never waits on a pool connection held by that unit. An unknown
// identity yields "" and later fails the email match.
func (s *Service) inviteeEmail(ctx context.Context, identityUserID string) (string, error) {
	u, err := s.identities.FindUserByID(ctx, identityUserID)
	if errors.Is(err, identity.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(u.Email), nil
}

func checkInvitee(inv Invitation, email string) Rejection {
	if email == "" || !strings.EqualFold(email, inv.Email) {
		return RejectEmailMismatch
	}
	return RejectNone
}

func (s *Service) expire(ctx context.Context, store Store, inv Invitation) (Invitation, error) {
	to, err := inv.Status.Expire()
	if err != nil {
		return inv, nil
	}
	updated, err := store.Invitations().Transition(ctx, inv.ID, TransitionRequest{From: inv.Status, To: to, At: s.now().UTC()})
	if errors.Is(err, ErrInvalidState) {
		return inv, nil
	}
	if err != nil {
		return Invitation{}, err
	}
	return updated, nil
}

// RefreshProjection recomputes the identity's cached domain projection from
// its memberships. A failure is logged and repaired on the next membership
// change.
func (s *Service) RefreshProjection(ctx context.Context, identityUserID string) {
	memberships, err := s.store.Memberships().ListByUser(ctx, identityUserID)
	if err == nil {
		_, err = s.identities.SyncProjection(ctx, identityUserID, memberships)
	}
	if err != nil {
		obs.Logger().WithError(err).WithField("identity_user_id", identityUserID).Warn("membership projection not updated")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

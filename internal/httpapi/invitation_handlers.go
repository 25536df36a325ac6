package httpapi

import (
	"errors"
	"net/http"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/directory"
	"propdesk.io/internal/onboarding"
)

type createInvitationRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type acceptInvitationRequest struct {
	FullName string `json:"full_name"`
}

type invitationResponse struct {
	Invitation onboarding.Invitation `json:"invitation"`
	AcceptURL  string                `json:"accept_url,omitempty"`
	EmailSent  bool                  `json:"email_sent"`
	Warning    string                `json:"warning,omitempty"`
}

func (a *API) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if !a.requireInviter(w, r, orgID) {
		return
	}
	var req createInvitationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var warning string
	if _, exists, err := a.svc.Invitations.PendingInvitationFor(r.Context(), req.Email, orgID); err != nil {
		writeInternal(w, r, "invitation lookup failed", err)
		return
	} else if exists {
		warning = "a pending invitation already exists for this email"
	}

	caller := auth.IdentityFromContext(r.Context())
	inv, err := a.svc.Invitations.CreateInvitation(r.Context(), onboarding.CreateRequest{
		OrganizationID: orgID,
		InvitedBy:      caller.UserID,
		Email:          req.Email,
		FullName:       req.FullName,
		Role:           req.Role,
	})
	if err != nil {
		handleInvitationError(w, r, err)
		return
	}

	sent := true
	if err := a.svc.Invitations.SendInvitation(r.Context(), inv); err != nil {
		sent = false
		if !errors.Is(err, onboarding.ErrNotificationFailed) {
			writeInternal(w, r, "invitation email failed", err)
			return
		}
	}
	_ = audit.LogEvent(r.Context(), "invitation.created", map[string]any{
		"invitation_id":   inv.ID,
		"organization_id": orgID,
		"role":            inv.Role,
		"email_sent":      sent,
	})
	writeJSON(w, http.StatusCreated, invitationResponse{
		Invitation: inv,
		AcceptURL:  a.svc.Invitations.AcceptURL(inv.Token),
		EmailSent:  sent,
		Warning:    warning,
	})
}

func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if !a.requireInviter(w, r, orgID) {
		return
	}
	list, err := a.svc.Invitations.ListInvitations(r.Context(), orgID)
	if err != nil {
		handleInvitationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": list})
}

// handlePendingInvitation backs the duplicate warning shown before sending.
func (a *API) handlePendingInvitation(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if !a.requireInviter(w, r, orgID) {
		return
	}
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	inv, exists, err := a.svc.Invitations.PendingInvitationFor(r.Context(), email, orgID)
	if err != nil {
		writeInternal(w, r, "invitation lookup failed", err)
		return
	}
	resp := map[string]any{"pending": exists}
	if exists {
		resp["invitation"] = inv
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCancelInvitation(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if !a.requireInviter(w, r, orgID) {
		return
	}
	inv, err := a.svc.Invitations.Cancel(r.Context(), orgID, pathVar(r, "invitationID"))
	if err != nil {
		handleInvitationError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "invitation.cancelled", map[string]any{
		"invitation_id":   inv.ID,
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusOK, inv)
}

// handleInvitationPreview is public: the landing page shows who the
// invitation is for before the invitee signs in.
func (a *API) handleInvitationPreview(w http.ResponseWriter, r *http.Request) {
	inv, rej, err := a.svc.Invitations.Validate(r.Context(), pathVar(r, "token"))
	if err != nil {
		writeInternal(w, r, "invitation lookup failed", err)
		return
	}
	if rej != onboarding.RejectNone {
		writeRejection(w, r, onboarding.Result{Rejection: rej, Invitation: inv})
		return
	}
	resp := map[string]any{
		"invitation": inv,
	}
	if org, err := a.svc.Directory.GetOrganization(r.Context(), inv.OrganizationID); err == nil {
		resp["organization_name"] = org.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req acceptInvitationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	caller := auth.IdentityFromContext(r.Context())
	res, err := a.svc.Invitations.Accept(r.Context(), pathVar(r, "token"), caller.UserID, req.FullName)
	if err != nil {
		handleInvitationError(w, r, err)
		return
	}
	if !res.Accepted {
		writeRejection(w, r, res)
		return
	}
	_ = audit.LogEvent(r.Context(), "invitation.accepted", map[string]any{
		"invitation_id":   res.Invitation.ID,
		"organization_id": res.Invitation.OrganizationID,
		"membership_id":   res.Membership.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"invitation": res.Invitation,
		"membership": res.Membership,
	})
}

func (a *API) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	res, err := a.svc.Invitations.Decline(r.Context(), pathVar(r, "token"), caller.UserID)
	if err != nil {
		handleInvitationError(w, r, err)
		return
	}
	if res.Rejection != onboarding.RejectNone {
		writeRejection(w, r, res)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitation": res.Invitation})
}

// handleOnboardingStatus answers whether the caller has joined an
// organization in the requested domain.
func (a *API) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	domain, err := directory.ParseDomain(r.URL.Query().Get("domain"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "domain must be one of management, owner, tenant, service")
		return
	}
	caller := auth.IdentityFromContext(r.Context())
	done, err := a.svc.Invitations.HasCompletedOnboarding(r.Context(), caller.UserID, domain)
	if err != nil {
		handleInvitationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":    domain,
		"completed": done,
	})
}

func (a *API) requireInviter(w http.ResponseWriter, r *http.Request, orgID string) bool {
	caller := auth.IdentityFromContext(r.Context())
	ok, err := a.svc.Invitations.CanUserInvite(r.Context(), caller.UserID, orgID)
	if err != nil {
		writeInternal(w, r, "membership lookup failed", err)
		return false
	}
	if !ok {
		forbidden(w, r)
		return false
	}
	return true
}

func writeRejection(w http.ResponseWriter, r *http.Request, res onboarding.Result) {
	code := http.StatusConflict
	switch res.Rejection {
	case onboarding.RejectNotFound:
		code = http.StatusNotFound
	case onboarding.RejectExpired:
		code = http.StatusGone
	case onboarding.RejectEmailMismatch:
		code = http.StatusForbidden
	}
	payload := map[string]any{
		"error": res.Message(),
		"code":  res.Rejection.Code(),
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func handleInvitationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, onboarding.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, onboarding.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "invitation not found")
	case errors.Is(err, onboarding.ErrInvalidState):
		writeError(w, r, http.StatusConflict, "invitation is no longer pending")
	case errors.Is(err, onboarding.ErrConflict), errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeInternal(w, r, "invitation operation failed", err)
	}
}

package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/directory"
)

type createOrganizationRequest struct {
	Name      string `json:"name"`
	LegalName string `json:"legal_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Domain    string `json:"domain"`
}

type updateOrganizationRequest struct {
	Name      *string `json:"name"`
	LegalName *string `json:"legal_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

// handleCreateOrganization is the self-service onboarding path: the caller
// becomes the founding Admin of the new organization.
func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	var req createOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var domain directory.Domain
	if req.Domain != "" {
		d, err := directory.ParseDomain(req.Domain)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		domain = d
	}
	user, err := a.svc.Identity.FindUserByID(r.Context(), caller.UserID)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	org, member, err := a.svc.Directory.CreateOrganization(r.Context(), directory.CreateOrganizationRequest{
		Name:      req.Name,
		LegalName: req.LegalName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		Domain:    domain,
	}, directory.Founder{
		IdentityUserID: user.ID,
		FullName:       user.FullName,
		Email:          user.Email,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.svc.Invitations.RefreshProjection(r.Context(), user.ID)
	_ = audit.LogEvent(r.Context(), "organization.created", map[string]any{
		"organization_id": org.ID,
		"domain":          org.Domain.String(),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", org.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"organization": org,
		"membership":   member,
	})
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if _, ok := a.requireMember(w, r, orgID, false); !ok {
		return
	}
	org, err := a.svc.Directory.GetOrganization(r.Context(), orgID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if _, ok := a.requireMember(w, r, orgID, true); !ok {
		return
	}
	var req updateOrganizationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.svc.Directory.UpdateOrganization(r.Context(), orgID, directory.OrganizationUpdate{
		Name:      req.Name,
		LegalName: req.LegalName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// handleOrganizationLogin records that the caller switched into orgID.
func (a *API) handleOrganizationLogin(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	caller := auth.IdentityFromContext(r.Context())
	m, err := a.svc.Directory.RecordLogin(r.Context(), caller.UserID, orgID)
	if errors.Is(err, directory.ErrNotFound) {
		forbidden(w, r)
		return
	}
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.svc.Invitations.RefreshProjection(r.Context(), caller.UserID)
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if _, ok := a.requireMember(w, r, orgID, false); !ok {
		return
	}
	members, err := a.svc.Directory.ListMembers(r.Context(), orgID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (a *API) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if _, ok := a.requireMember(w, r, orgID, true); !ok {
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.svc.Directory.ChangeRole(r.Context(), orgID, pathVar(r, "membershipID"), req.Role)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.role_changed", map[string]any{
		"organization_id": orgID,
		"membership_id":   m.ID,
		"role":            m.Role,
	})
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleDeactivateMember(w http.ResponseWriter, r *http.Request) {
	orgID := pathVar(r, "orgID")
	if _, ok := a.requireMember(w, r, orgID, true); !ok {
		return
	}
	m, err := a.svc.Directory.DeactivateMembership(r.Context(), orgID, pathVar(r, "membershipID"))
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.svc.Invitations.RefreshProjection(r.Context(), m.IdentityUserID)
	_ = audit.LogEvent(r.Context(), "membership.deactivated", map[string]any{
		"organization_id": orgID,
		"membership_id":   m.ID,
	})
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleMyMemberships(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFromContext(r.Context())
	list, err := a.svc.Directory.MembershipsForUser(r.Context(), caller.UserID)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": list})
}

// requireMember checks that the caller holds an active membership in orgID,
// with an inviter role when admin is set.
func (a *API) requireMember(w http.ResponseWriter, r *http.Request, orgID string, admin bool) (directory.Membership, bool) {
	caller := auth.IdentityFromContext(r.Context())
	m, found, err := a.activeMembership(r.Context(), caller.UserID, orgID)
	if err != nil {
		writeInternal(w, r, "membership lookup failed", err)
		return directory.Membership{}, false
	}
	if !found || (admin && !directory.IsInviterRole(m.Role)) {
		forbidden(w, r)
		return directory.Membership{}, false
	}
	return m, true
}

func (a *API) activeMembership(ctx context.Context, identityUserID, orgID string) (directory.Membership, bool, error) {
	list, err := a.svc.Directory.MembershipsForUser(ctx, identityUserID)
	if err != nil {
		return directory.Membership{}, false, err
	}
	for _, m := range list {
		if m.Active && m.OrganizationID == orgID {
			return m, true, nil
		}
	}
	return directory.Membership{}, false, nil
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeInternal(w, r, "directory operation failed", err)
	}
}

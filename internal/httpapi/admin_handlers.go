package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
)

type createAdminRequest struct {
	IdentityUserID string `json:"identity_user_id"`
	RoleID         string `json:"role_id"`
	SuperAdmin     bool   `json:"is_super_admin"`
}

// handleCheckPolicy lets the UI ask whether the caller satisfies a named
// policy. Unknown policy names are reported as not allowed.
func (a *API) handleCheckPolicy(w http.ResponseWriter, r *http.Request) {
	name := pathVar(r, "name")
	allowed := false
	if policy, ok := auth.PolicyByName(name); ok && a.svc.Gate != nil {
		var err error
		allowed, err = a.svc.Gate.Authorize(r.Context(), auth.IdentityFromContext(r.Context()), policy)
		if err != nil {
			logWarn(r, "policy check failed", err)
			allowed = false
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"policy":  name,
		"allowed": allowed,
	})
}

func (a *API) handleAdminRoles(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.IsSystemAdmin) {
		return
	}
	roles, err := a.svc.Admins.ListRoles(r.Context())
	if err != nil {
		handleAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanManageAdmins) {
		return
	}
	admins, err := a.svc.Admins.ListSystemAdmins(r.Context())
	if err != nil {
		handleAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admins": admins})
}

func (a *API) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanManageAdmins) {
		return
	}
	var req createAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor := a.actingAdmin(r)
	created, err := a.svc.Admins.CreateSystemAdmin(r.Context(), auth.CreateAdminRequest{
		IdentityUserID: req.IdentityUserID,
		RoleID:         req.RoleID,
		SuperAdmin:     req.SuperAdmin,
		CreatedBy:      actor,
	})
	if err != nil {
		handleAdminError(w, r, err)
		return
	}
	a.invalidateAdmin(r, created.IdentityUserID)
	a.recordActivity(r, actor, "admin.create", "Created system admin", "system_admin", created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) handleDeactivateAdmin(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanManageAdmins) {
		return
	}
	actor := a.actingAdmin(r)
	updated, err := a.svc.Admins.SetActive(r.Context(), pathVar(r, "adminID"), false, actor)
	if err != nil {
		handleAdminError(w, r, err)
		return
	}
	a.invalidateAdmin(r, updated.IdentityUserID)
	a.recordActivity(r, actor, "admin.deactivate", "Deactivated system admin", "system_admin", updated.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanViewReports) {
		return
	}
	count := queryInt(r, "count", audit.DefaultPageSize)
	entries, err := a.svc.Activity.RecentActivity(r.Context(), count)
	if err != nil {
		writeInternal(w, r, "activity lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

func (a *API) handleAdminActivity(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanManageAdmins) {
		return
	}
	page := queryInt(r, "page", 1)
	size := queryInt(r, "page_size", audit.DefaultPageSize)
	entries, err := a.svc.Activity.ActivityForAdmin(r.Context(), pathVar(r, "adminID"), size, page)
	if err != nil {
		writeInternal(w, r, "activity lookup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": entries,
		"page":     max(page, 1),
	})
}

func (a *API) handleAdminOrganizations(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanManageCompanies) {
		return
	}
	orgs, err := a.svc.Directory.ListOrganizations(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
}

func (a *API) handleAdminDeactivateOrganization(w http.ResponseWriter, r *http.Request) {
	if !a.authorize(w, r, auth.CanManageCompanies) {
		return
	}
	org, err := a.svc.Directory.DeactivateOrganization(r.Context(), pathVar(r, "orgID"))
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.recordActivity(r, a.actingAdmin(r), "organization.deactivate", "Deactivated organization "+org.Name, "organization", org.ID)
	writeJSON(w, http.StatusOK, org)
}

// actingAdmin resolves the caller's admin id for activity entries. The gate
// has already admitted the caller, so a miss only degrades the log entry.
func (a *API) actingAdmin(r *http.Request) string {
	caller := auth.IdentityFromContext(r.Context())
	admin, err := a.svc.Admins.AdminForIdentity(r.Context(), caller.UserID)
	if err != nil {
		logWarn(r, "acting admin lookup failed", err)
		return ""
	}
	return admin.ID
}

func (a *API) recordActivity(r *http.Request, adminID, activity, description, entityType, entityID string) {
	if a.svc.Activity == nil {
		return
	}
	a.svc.Activity.LogActivity(r.Context(), audit.Entry{
		AdminID:     adminID,
		Activity:    activity,
		Description: description,
		EntityType:  entityType,
		EntityID:    entityID,
		IPAddress:   clientIP(r),
		UserAgent:   r.UserAgent(),
	})
}

func (a *API) invalidateAdmin(r *http.Request, identityUserID string) {
	if a.adminCache == nil {
		return
	}
	if err := a.adminCache.Invalidate(r.Context(), identityUserID); err != nil {
		logWarn(r, "admin cache invalidation failed", err)
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func handleAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, "identity is already a system admin")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "admin not found")
	default:
		writeInternal(w, r, "admin operation failed", err)
	}
}

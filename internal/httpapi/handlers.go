package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/obs"
	"propdesk.io/internal/onboarding"
)

const serviceName = "propdesk-api"

// ReadyProbe checks the dependencies the API cannot serve without.
type ReadyProbe struct {
	DB    *sql.DB
	Cache interface{ Ping(context.Context) error }
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Cache != nil {
		if err := rp.Cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// readinessChecker is satisfied by ReadyProbe and by test doubles.
type readinessChecker interface {
	Check(ctx context.Context) error
}

// AdminCache drops cached admin grants after admin records change.
type AdminCache interface {
	Invalidate(ctx context.Context, identityUserID string) error
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	Identity    *identity.Service
	Directory   *directory.Service
	Invitations *onboarding.Service
	Gate        *auth.Gate
	Admins      *auth.AdminService
	Tokens      *auth.TokenIssuer
	Activity    *audit.Recorder
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	svc        Services
	readyProbe readinessChecker
	adminCache AdminCache
	version    string
	maxBody    int64
	rateBurst  int
	ratePerSec int
	forwarded  bool
}

// Option customises an API.
type Option func(*API)

// WithRateLimit sets the per-client token bucket.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSecond
		}
	}
}

// WithForwardedFor trusts X-Forwarded-For for the client address used by
// rate limiting, logs and activity records.
func WithForwardedFor(trust bool) Option {
	return func(a *API) { a.forwarded = trust }
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBody = n
		}
	}
}

// WithAdminCache registers the cache invalidated on admin changes.
func WithAdminCache(c AdminCache) Option {
	return func(a *API) { a.adminCache = c }
}

func New(svc Services, rp readinessChecker, version string, opts ...Option) *API {
	a := &API{
		router:     mux.NewRouter(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
		maxBody:    1 << 20,
		rateBurst:  20,
		ratePerSec: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	r.Use(obs.Instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", a.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.Ready).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/v1/info", a.Info).Methods(http.MethodGet)

	r.HandleFunc("/v1/auth/register", a.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/login", a.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/v1/invitations/{token}", a.handleInvitationPreview).Methods(http.MethodGet)

	p := r.PathPrefix("/v1").Subrouter()
	p.Use(a.withAuth)

	p.HandleFunc("/me/onboarding", a.handleOnboardingStatus).Methods(http.MethodGet)
	p.HandleFunc("/me/memberships", a.handleMyMemberships).Methods(http.MethodGet)

	p.HandleFunc("/organizations", a.handleCreateOrganization).Methods(http.MethodPost)
	p.HandleFunc("/organizations/{orgID}", a.handleGetOrganization).Methods(http.MethodGet)
	p.HandleFunc("/organizations/{orgID}", a.handleUpdateOrganization).Methods(http.MethodPatch)
	p.HandleFunc("/organizations/{orgID}/login", a.handleOrganizationLogin).Methods(http.MethodPost)
	p.HandleFunc("/organizations/{orgID}/members", a.handleListMembers).Methods(http.MethodGet)
	p.HandleFunc("/organizations/{orgID}/members/{membershipID}", a.handleChangeRole).Methods(http.MethodPatch)
	p.HandleFunc("/organizations/{orgID}/members/{membershipID}/deactivate", a.handleDeactivateMember).Methods(http.MethodPost)

	p.HandleFunc("/organizations/{orgID}/invitations", a.handleCreateInvitation).Methods(http.MethodPost)
	p.HandleFunc("/organizations/{orgID}/invitations", a.handleListInvitations).Methods(http.MethodGet)
	p.HandleFunc("/organizations/{orgID}/invitations/pending", a.handlePendingInvitation).Methods(http.MethodGet)
	p.HandleFunc("/organizations/{orgID}/invitations/{invitationID}/cancel", a.handleCancelInvitation).Methods(http.MethodPost)
	p.HandleFunc("/invitations/{token}/accept", a.handleAcceptInvitation).Methods(http.MethodPost)
	p.HandleFunc("/invitations/{token}/decline", a.handleDeclineInvitation).Methods(http.MethodPost)

	p.HandleFunc("/admin/policies/{name}", a.handleCheckPolicy).Methods(http.MethodGet)
	p.HandleFunc("/admin/roles", a.handleAdminRoles).Methods(http.MethodGet)
	p.HandleFunc("/admin/admins", a.handleListAdmins).Methods(http.MethodGet)
	p.HandleFunc("/admin/admins", a.handleCreateAdmin).Methods(http.MethodPost)
	p.HandleFunc("/admin/admins/{adminID}/deactivate", a.handleDeactivateAdmin).Methods(http.MethodPost)
	p.HandleFunc("/admin/admins/{adminID}/activity", a.handleAdminActivity).Methods(http.MethodGet)
	p.HandleFunc("/admin/activity", a.handleRecentActivity).Methods(http.MethodGet)
	p.HandleFunc("/admin/organizations", a.handleAdminOrganizations).Methods(http.MethodGet)
	p.HandleFunc("/admin/organizations/{orgID}/deactivate", a.handleAdminDeactivateOrganization).Methods(http.MethodPost)
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	if a.forwarded {
		h = ForwardedFor(h)
	}
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.readyProbe != nil {
		if err := a.readyProbe.Check(r.Context()); err != nil {
			obs.SetReady(false)
			obs.Logger().WithError(err).Warn("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
			})
			return
		}
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// writeInternal logs err and answers with a generic 500.
func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	obs.Logger().WithError(err).WithField("request_id", audit.RequestIDFromContext(r.Context())).Error(msg)
	writeError(w, r, http.StatusInternalServerError, msg)
}

func logWarn(r *http.Request, msg string, err error) {
	obs.Logger().WithError(err).WithField("request_id", audit.RequestIDFromContext(r.Context())).Warn(msg)
}

// forbidden is identical for every denial so callers cannot tell why.
func forbidden(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusForbidden, "forbidden")
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func pathVar(r *http.Request, name string) string {
	return strings.TrimSpace(mux.Vars(r)[name])
}

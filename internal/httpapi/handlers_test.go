package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/auth"
	"propdesk.io/internal/directory"
	"propdesk.io/internal/identity"
	"propdesk.io/internal/onboarding"
	"propdesk.io/internal/store/memory"
)

const testPassword = "correct horse battery"

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	mailer  *recordingMailer
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.New()
	mailer := &recordingMailer{}
	identities := identity.NewService(store.Identities(), nil)
	tokens, err := auth.NewTokenIssuer("test-secret", "propdesk-test", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	api := New(Services{
		Identity:  identities,
		Directory: directory.NewService(store.Directory(), nil),
		Invitations: onboarding.NewService(store.Onboarding(), identities,
			onboarding.WithMailer(mailer),
			onboarding.WithPublicBaseURL("https://app.propdesk.test"),
		),
		Gate:     auth.NewGate(store.Admins()),
		Admins:   auth.NewAdminService(store.Admins(), nil),
		Tokens:   tokens,
		Activity: audit.NewRecorder(store.Activity(), nil),
	}, ReadyProbe{}, "test", WithRateLimit(1000, 1000))

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		mailer:  mailer,
		t:       t,
	}
}

func (c *apiClient) do(method, path, token string, body any) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path, token string, body any) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, token, body)
}

func (c *apiClient) get(path, token string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodGet, path, token, nil)
}

type session struct {
	token  string
	userID string
}

func (c *apiClient) register(email string) session {
	c.t.Helper()
	resp := c.post("/v1/auth/register", "", map[string]any{
		"email":     email,
		"full_name": "Test " + email,
		"password":  testPassword,
	})
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeStatus(c.t, resp, http.StatusCreated, &out)
	if out.Token == "" || out.User.ID == "" {
		c.t.Fatalf("register %s: missing token or user id", email)
	}
	return session{token: out.Token, userID: out.User.ID}
}

func (c *apiClient) createOrganization(s session, name string) string {
	c.t.Helper()
	resp := c.post("/v1/organizations", s.token, map[string]any{"name": name, "domain": "management"})
	var out struct {
		Organization struct {
			ID string `json:"id"`
		} `json:"organization"`
		Membership struct {
			Role string `json:"role"`
		} `json:"membership"`
	}
	decodeStatus(c.t, resp, http.StatusCreated, &out)
	if out.Membership.Role != directory.RoleAdmin {
		c.t.Fatalf("founder role = %q, want Admin", out.Membership.Role)
	}
	return out.Organization.ID
}

type createdInvitation struct {
	Invitation struct {
		ID     string `json:"id"`
		Email  string `json:"email"`
		Status string `json:"status"`
	} `json:"invitation"`
	AcceptURL string `json:"accept_url"`
	EmailSent bool   `json:"email_sent"`
	Warning   string `json:"warning"`
}

func (ci createdInvitation) token(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(ci.AcceptURL)
	if err != nil {
		t.Fatalf("parse accept url: %v", err)
	}
	tok := u.Query().Get("token")
	if tok == "" {
		t.Fatalf("accept url %q has no token", ci.AcceptURL)
	}
	return tok
}

func (c *apiClient) invite(s session, orgID, email, role string) createdInvitation {
	c.t.Helper()
	resp := c.post("/v1/organizations/"+orgID+"/invitations", s.token, map[string]any{
		"email": email,
		"role":  role,
	})
	var out createdInvitation
	decodeStatus(c.t, resp, http.StatusCreated, &out)
	return out
}

func (c *apiClient) makeAdmin(userID, roleID string) {
	c.t.Helper()
	err := c.store.Admins().CreateAdmin(context.Background(), &auth.SystemAdmin{
		IdentityUserID: userID,
		RoleID:         roleID,
		Active:         true,
	})
	if err != nil {
		c.t.Fatalf("seed admin: %v", err)
	}
}

func decodeStatus(t *testing.T, resp *http.Response, want int, dst any) {
	t.Helper()
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d, body %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, raw)
	}
	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			t.Fatalf("decode response: %v (%s)", err, raw)
		}
	}
}

func TestHealthReadyInfo(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, "")
		decodeStatus(t, resp, http.StatusOK, nil)
		if resp.Header.Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing X-Request-ID", path)
		}
	}
}

func TestReadyReportsFailingProbe(t *testing.T) {
	api := New(Services{}, failingReadiness{}, "test")
	rr := httptest.NewRecorder()
	api.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "boom") {
		t.Fatalf("probe error leaked: %s", rr.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	c := newTestAPI(t)
	c.register("casey@example.com")

	resp := c.post("/v1/auth/register", "", map[string]any{
		"email": "CASEY@example.com", "full_name": "Casey", "password": testPassword,
	})
	decodeStatus(t, resp, http.StatusConflict, nil)

	resp = c.post("/v1/auth/login", "", map[string]any{"email": "casey@example.com", "password": "wrong password"})
	decodeStatus(t, resp, http.StatusUnauthorized, nil)

	var out struct {
		Token string `json:"token"`
	}
	resp = c.post("/v1/auth/login", "", map[string]any{"email": "Casey@Example.com", "password": testPassword})
	decodeStatus(t, resp, http.StatusOK, &out)
	if out.Token == "" {
		t.Fatal("expected token")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newTestAPI(t)

	decodeStatus(t, c.get("/v1/me/memberships", ""), http.StatusUnauthorized, nil)
	decodeStatus(t, c.get("/v1/me/memberships", "not-a-jwt"), http.StatusUnauthorized, nil)
	decodeStatus(t, c.post("/v1/invitations/abc/accept", "", nil), http.StatusUnauthorized, nil)
}

func TestInvitationLifecycle(t *testing.T) {
	c := newTestAPI(t)
	owner := c.register("owner@example.com")
	orgID := c.createOrganization(owner, "Harbor Lofts")

	inv := c.invite(owner, orgID, "Bob@Example.com", "Administrator")
	if !inv.EmailSent || inv.Warning != "" {
		t.Fatalf("unexpected create response: %+v", inv)
	}
	if inv.Invitation.Email != "bob@example.com" || inv.Invitation.Status != "pending" {
		t.Fatalf("unexpected invitation: %+v", inv.Invitation)
	}
	if !strings.HasPrefix(inv.AcceptURL, "https://app.propdesk.test/invite/accept?token=") {
		t.Fatalf("unexpected accept url %q", inv.AcceptURL)
	}
	token := inv.token(t)

	var preview struct {
		OrganizationName string `json:"organization_name"`
	}
	decodeStatus(t, c.get("/v1/invitations/"+token, ""), http.StatusOK, &preview)
	if preview.OrganizationName != "Harbor Lofts" {
		t.Fatalf("preview organization = %q", preview.OrganizationName)
	}

	dup := c.invite(owner, orgID, "bob@example.com", "")
	if dup.Warning == "" {
		t.Fatal("expected duplicate pending warning")
	}

	bob := c.register("bob@example.com")
	var status struct {
		Completed bool `json:"completed"`
	}
	decodeStatus(t, c.get("/v1/me/onboarding?domain=management", bob.token), http.StatusOK, &status)
	if status.Completed {
		t.Fatal("onboarding completed before accepting")
	}

	var accepted struct {
		Membership struct {
			Role           string `json:"role"`
			OrganizationID string `json:"organization_id"`
		} `json:"membership"`
		Invitation struct {
			Status string `json:"status"`
		} `json:"invitation"`
	}
	decodeStatus(t, c.post("/v1/invitations/"+token+"/accept", bob.token, nil), http.StatusOK, &accepted)
	if accepted.Membership.Role != "Administrator" || accepted.Membership.OrganizationID != orgID {
		t.Fatalf("unexpected membership: %+v", accepted.Membership)
	}
	if accepted.Invitation.Status != "accepted" {
		t.Fatalf("invitation status = %q", accepted.Invitation.Status)
	}

	decodeStatus(t, c.get("/v1/me/onboarding?domain=management", bob.token), http.StatusOK, &status)
	if !status.Completed {
		t.Fatal("onboarding not completed after accepting")
	}
	decodeStatus(t, c.get("/v1/me/onboarding?domain=tenant", bob.token), http.StatusOK, &status)
	if status.Completed {
		t.Fatal("tenant domain reported completed")
	}

	var rejection struct {
		Code string `json:"code"`
	}
	decodeStatus(t, c.post("/v1/invitations/"+token+"/accept", bob.token, nil), http.StatusConflict, &rejection)
	if rejection.Code != "invalid_state" {
		t.Fatalf("second accept code = %q", rejection.Code)
	}

	// Administrator members may invite.
	c.invite(bob, orgID, "carol@example.com", "")

	var listed struct {
		Invitations []json.RawMessage `json:"invitations"`
	}
	decodeStatus(t, c.get("/v1/organizations/"+orgID+"/invitations", owner.token), http.StatusOK, &listed)
	if len(listed.Invitations) != 3 {
		t.Fatalf("expected 3 invitations, got %d", len(listed.Invitations))
	}
}

func TestAcceptRejectsOtherEmail(t *testing.T) {
	c := newTestAPI(t)
	owner := c.register("owner@example.com")
	orgID := c.createOrganization(owner, "Harbor Lofts")
	token := c.invite(owner, orgID, "dana@example.com", "").token(t)

	eve := c.register("eve@example.com")
	var rejection struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	decodeStatus(t, c.post("/v1/invitations/"+token+"/accept", eve.token, nil), http.StatusForbidden, &rejection)
	if rejection.Code != "email_mismatch" || !strings.Contains(rejection.Error, "dana@example.com") {
		t.Fatalf("unexpected rejection: %+v", rejection)
	}

	decodeStatus(t, c.get("/v1/invitations/unknown-token", ""), http.StatusNotFound, nil)
}

func TestDeclineAndCancel(t *testing.T) {
	c := newTestAPI(t)
	owner := c.register("owner@example.com")
	orgID := c.createOrganization(owner, "Harbor Lofts")

	declined := c.invite(owner, orgID, "frank@example.com", "").token(t)
	frank := c.register("frank@example.com")
	decodeStatus(t, c.post("/v1/invitations/"+declined+"/decline", frank.token, nil), http.StatusOK, nil)
	decodeStatus(t, c.post("/v1/invitations/"+declined+"/accept", frank.token, nil), http.StatusConflict, nil)

	cancelled := c.invite(owner, orgID, "gina@example.com", "")
	path := "/v1/organizations/" + orgID + "/invitations/" + cancelled.Invitation.ID + "/cancel"
	decodeStatus(t, c.post(path, frank.token, nil), http.StatusForbidden, nil)
	decodeStatus(t, c.post(path, owner.token, nil), http.StatusOK, nil)
	decodeStatus(t, c.post(path, owner.token, nil), http.StatusConflict, nil)
}

func TestInvitationCreatedWhenEmailFails(t *testing.T) {
	c := newTestAPI(t)
	owner := c.register("owner@example.com")
	orgID := c.createOrganization(owner, "Harbor Lofts")
	c.mailer.err = errors.New("smtp down")

	inv := c.invite(owner, orgID, "hank@example.com", "")
	if inv.EmailSent {
		t.Fatal("expected email_sent=false")
	}
	var pending struct {
		Pending bool `json:"pending"`
	}
	decodeStatus(t, c.get("/v1/organizations/"+orgID+"/invitations/pending?email=HANK@example.com", owner.token), http.StatusOK, &pending)
	if !pending.Pending {
		t.Fatal("invitation was not kept after email failure")
	}
}

func TestNonAdminMemberCannotInvite(t *testing.T) {
	c := newTestAPI(t)
	owner := c.register("owner@example.com")
	orgID := c.createOrganization(owner, "Harbor Lofts")
	token := c.invite(owner, orgID, "ivy@example.com", "User").token(t)
	ivy := c.register("ivy@example.com")
	decodeStatus(t, c.post("/v1/invitations/"+token+"/accept", ivy.token, nil), http.StatusOK, nil)

	resp := c.post("/v1/organizations/"+orgID+"/invitations", ivy.token, map[string]any{"email": "x@example.com"})
	var body map[string]any
	decodeStatus(t, resp, http.StatusForbidden, &body)
	if body["error"] != "forbidden" {
		t.Fatalf("unexpected 403 body: %v", body)
	}
	decodeStatus(t, c.get("/v1/organizations/"+orgID+"/members", ivy.token), http.StatusOK, nil)

	stranger := c.register("stranger@example.com")
	decodeStatus(t, c.get("/v1/organizations/"+orgID, stranger.token), http.StatusForbidden, nil)
}

func TestAdminRoutesFollowPolicies(t *testing.T) {
	c := newTestAPI(t)
	plain := c.register("plain@example.com")
	auditor := c.register("auditor@example.com")
	owner := c.register("root@example.com")
	c.makeAdmin(auditor.userID, "role_auditor")
	c.makeAdmin(owner.userID, "role_platform_owner")

	var denied map[string]any
	decodeStatus(t, c.get("/v1/admin/roles", plain.token), http.StatusForbidden, &denied)
	var deniedAdmin map[string]any
	decodeStatus(t, c.post("/v1/admin/admins", auditor.token, map[string]any{
		"identity_user_id": plain.userID, "role_id": "role_support",
	}), http.StatusForbidden, &deniedAdmin)
	if denied["error"] != deniedAdmin["error"] {
		t.Fatalf("deny bodies differ: %v vs %v", denied, deniedAdmin)
	}

	decodeStatus(t, c.get("/v1/admin/roles", auditor.token), http.StatusOK, nil)
	decodeStatus(t, c.get("/v1/admin/activity", auditor.token), http.StatusOK, nil)

	var check struct {
		Allowed bool `json:"allowed"`
	}
	decodeStatus(t, c.get("/v1/admin/policies/CanViewReports", auditor.token), http.StatusOK, &check)
	if !check.Allowed {
		t.Fatal("auditor should satisfy CanViewReports")
	}
	decodeStatus(t, c.get("/v1/admin/policies/CanManageAdmins", auditor.token), http.StatusOK, &check)
	if check.Allowed {
		t.Fatal("auditor should not satisfy CanManageAdmins")
	}
	decodeStatus(t, c.get("/v1/admin/policies/canviewreports", auditor.token), http.StatusOK, &check)
	if check.Allowed {
		t.Fatal("policy names must match exactly")
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeStatus(t, c.post("/v1/admin/admins", owner.token, map[string]any{
		"identity_user_id": plain.userID, "role_id": "role_support",
	}), http.StatusCreated, &created)

	var activity struct {
		Activity []audit.Entry `json:"activity"`
	}
	decodeStatus(t, c.get("/v1/admin/activity", owner.token), http.StatusOK, &activity)
	if len(activity.Activity) != 1 || activity.Activity[0].Activity != "admin.create" || activity.Activity[0].EntityID != created.ID {
		t.Fatalf("unexpected activity: %+v", activity.Activity)
	}

	decodeStatus(t, c.post("/v1/admin/admins/"+created.ID+"/deactivate", owner.token, nil), http.StatusOK, nil)
	decodeStatus(t, c.get("/v1/admin/roles", plain.token), http.StatusForbidden, nil)
}

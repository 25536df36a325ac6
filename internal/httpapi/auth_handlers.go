package httpapi

import (
	"errors"
	"net/http"
	"time"

	"propdesk.io/internal/audit"
	"propdesk.io/internal/identity"
)

type registerRequest struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      identity.User `json:"user"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.Identity.CreateUser(r.Context(), identity.Profile{
		Email:    req.Email,
		FullName: req.FullName,
	}, req.Password)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "identity.registered", map[string]any{"user_id": user.ID})
	a.issueToken(w, r, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.Identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.issueToken(w, r, http.StatusOK, user)
}

func (a *API) issueToken(w http.ResponseWriter, r *http.Request, code int, user identity.User) {
	token, expiresAt, err := a.svc.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		writeInternal(w, r, "token generation failed", err)
		return
	}
	writeJSON(w, code, tokenResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func handleIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrConflict):
		writeError(w, r, http.StatusConflict, "email is already registered")
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	default:
		writeInternal(w, r, "identity operation failed", err)
	}
}

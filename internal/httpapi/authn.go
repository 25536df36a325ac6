package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"propdesk.io/internal/auth"
	"propdesk.io/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth requires a valid bearer token and attaches the caller identity.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if a.svc.Tokens == nil {
			writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.svc.Tokens.Parse(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authorize runs the gate for the caller. It writes the response and returns
// false when the request must stop.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, policy auth.Policy) bool {
	if a.svc.Gate == nil {
		forbidden(w, r)
		return false
	}
	ok, err := a.svc.Gate.Authorize(r.Context(), auth.IdentityFromContext(r.Context()), policy)
	if err != nil {
		obs.Logger().WithError(err).WithField("policy", policy.Name).Error("authorization lookup failed")
		forbidden(w, r)
		return false
	}
	if !ok {
		forbidden(w, r)
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

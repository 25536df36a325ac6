package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssueAndParse(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-value", "propdesk-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, expires, err := issuer.Issue("user-42", "Foo@Bar.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiration, got %v", expires)
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id := claims.Identity()
	if !id.Authenticated || id.UserID != "user-42" || id.Email != "foo@bar.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	a, _ := NewTokenIssuer("secret-a", "propdesk", time.Hour)
	b, _ := NewTokenIssuer("secret-b", "propdesk", time.Hour)
	token, _, err := a.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := a.Parse(token + "x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for corrupted token, got %v", err)
	}
	if _, err := a.Parse(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}
}

func TestTokenExpired(t *testing.T) {
	issuer, _ := NewTokenIssuer("secret", "propdesk", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("  ", "propdesk", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

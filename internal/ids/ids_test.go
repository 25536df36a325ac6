package ids

import (
	"net/url"
	"testing"
)

func TestTokenUniqueAndURLSafe(t *testing.T) {
	const n = 5000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		tok, err := Token()
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if len(tok) != TokenBytes*2 {
			t.Fatalf("unexpected token length %d", len(tok))
		}
		if url.QueryEscape(tok) != tok {
			t.Fatalf("token is not URL-safe: %q", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d generations", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	if a >= b {
		t.Fatalf("expected monotonic ids, got %s then %s", a, b)
	}
}

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/medicox/meeting-signaling/internal/config"
)

func TestCredentialFromRequest(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/turn?apiKey=query", nil)
		r.Header.Set(HeaderAPIKey, "header")
		cred, err := CredentialFromRequest(r)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "header" {
			t.Fatalf("cred=%q, want %q", cred, "header")
		}
	})

	t.Run("authorization scheme", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/turn", nil)
		r.Header.Set("Authorization", "ApiKey k1")
		cred, err := CredentialFromRequest(r)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "k1" {
			t.Fatalf("cred=%q, want %q", cred, "k1")
		}
	})

	t.Run("query fallback", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/turn?apiKey=q", nil)
		cred, err := CredentialFromRequest(r)
		if err != nil {
			t.Fatalf("err=%v", err)
		}
		if cred != "q" {
			t.Fatalf("cred=%q, want %q", cred, "q")
		}
	})

	t.Run("missing", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/turn", nil)
		r.Header.Set("Authorization", "Bearer abc")
		if _, err := CredentialFromRequest(r); !errors.Is(err, ErrMissingCredentials) {
			t.Fatalf("err=%v, want %v", err, ErrMissingCredentials)
		}
	})
}

func TestAPIKeyVerifier(t *testing.T) {
	v := APIKeyVerifier{Expected: "secret"}
	if err := v.Verify("secret"); err != nil {
		t.Fatalf("Verify(secret)=%v, want nil", err)
	}
	for _, bad := range []string{"", "Secret", "secret2"} {
		if err := v.Verify(bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Verify(%q)=%v, want %v", bad, err, ErrInvalidCredentials)
		}
	}
	if err := (APIKeyVerifier{}).Verify("anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty expected key must reject")
	}
}

func TestNewVerifier(t *testing.T) {
	v, err := NewVerifier(config.Config{AuthMode: config.AuthModeNone})
	if err != nil || v != nil {
		t.Fatalf("none: v=%v err=%v, want nil,nil", v, err)
	}

	if _, err := NewVerifier(config.Config{AuthMode: config.AuthModeAPIKey}); err == nil {
		t.Fatalf("expected error for api_key mode without key")
	}

	v, err = NewVerifier(config.Config{AuthMode: config.AuthModeAPIKey, APIKey: "k"})
	if err != nil {
		t.Fatalf("api_key: err=%v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/turn", nil)
	if err := Authorize(v, r); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("Authorize without key err=%v, want %v", err, ErrMissingCredentials)
	}
	r.Header.Set(HeaderAPIKey, "k")
	if err := Authorize(v, r); err != nil {
		t.Fatalf("Authorize with key err=%v", err)
	}
	if err := Authorize(nil, r); err != nil {
		t.Fatalf("nil verifier must admit, got %v", err)
	}
}

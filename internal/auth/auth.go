// Package auth guards the stateless HTTP endpoints with a shared API key.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/medicox/meeting-signaling/internal/config"
)

// HeaderAPIKey carries the shared key on ICE configuration requests.
const HeaderAPIKey = "X-API-Key"

var ErrMissingCredentials = errors.New("missing credentials")

type Verifier interface {
	Verify(credential string) error
}

// NewVerifier returns nil when cfg disables auth.
func NewVerifier(cfg config.Config) (Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeNone:
		return nil, nil
	case config.AuthModeAPIKey:
		if cfg.APIKey == "" {
			return nil, errors.New("api_key auth requires a non-empty key")
		}
		return APIKeyVerifier{Expected: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

// CredentialFromRequest extracts the API key from the X-API-Key header,
// falling back to an "ApiKey" Authorization scheme and then the apiKey query
// parameter (for clients that cannot set headers).
func CredentialFromRequest(r *http.Request) (string, error) {
	if v := strings.TrimSpace(r.Header.Get(HeaderAPIKey)); v != "" {
		return v, nil
	}
	if scheme, value, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok && strings.EqualFold(scheme, "ApiKey") {
		if v := strings.TrimSpace(value); v != "" {
			return v, nil
		}
	}
	if v := r.URL.Query().Get("apiKey"); v != "" {
		return v, nil
	}
	return "", ErrMissingCredentials
}

// Authorize checks r against v. A nil Verifier admits every request.
func Authorize(v Verifier, r *http.Request) error {
	if v == nil {
		return nil
	}
	cred, err := CredentialFromRequest(r)
	if err != nil {
		return err
	}
	return v.Verify(cred)
}

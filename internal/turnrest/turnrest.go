// Package turnrest mints coturn-compatible short-lived TURN credentials
// ("TURN REST API", coturn use-auth-secret).
//
//	username   = <unix_expiry>:<prefix>:<user_id>
//	credential = base64(hmac_sha1(shared_secret, username))
package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type GeneratorConfig struct {
	SharedSecret   string
	TTL            time.Duration
	UsernamePrefix string
	Now            func() time.Time
	// UserIDSource defaults to random uuids.
	UserIDSource func() string
}

// Generator is safe for concurrent use.
type Generator struct {
	secret []byte
	ttl    time.Duration
	prefix string
	now    func() time.Time
	userID func() string
}

type Credentials struct {
	Username   string
	Credential string
	Expires    time.Time
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("turnrest: shared secret is required")
	}
	if cfg.TTL < time.Second {
		return nil, errors.New("turnrest: TTL must be at least one second")
	}
	if cfg.UsernamePrefix == "" || strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("turnrest: username prefix must be non-empty and must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.UserIDSource == nil {
		cfg.UserIDSource = uuid.NewString
	}
	return &Generator{
		secret: []byte(cfg.SharedSecret),
		ttl:    cfg.TTL,
		prefix: cfg.UsernamePrefix,
		now:    cfg.Now,
		userID: cfg.UserIDSource,
	}, nil
}

// Generate signs credentials for userID, which must not contain ':'.
func (g *Generator) Generate(userID string) (Credentials, error) {
	if userID == "" || strings.Contains(userID, ":") {
		return Credentials{}, fmt.Errorf("turnrest: invalid user id %q", userID)
	}
	expires := g.now().UTC().Add(g.ttl).Truncate(time.Second)
	username := strconv.FormatInt(expires.Unix(), 10) + ":" + g.prefix + ":" + userID
	return Credentials{
		Username:   username,
		Credential: Sign(g.secret, username),
		Expires:    expires,
	}, nil
}

// Issue signs credentials for a fresh random user id.
func (g *Generator) Issue() (Credentials, error) {
	return g.Generate(g.userID())
}

// Sign returns base64(hmac_sha1(secret, username)).
func Sign(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ParseExpiry extracts the expiry timestamp a TURN server would check.
func ParseExpiry(username string) (time.Time, error) {
	head, _, _ := strings.Cut(username, ":")
	secs, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("turnrest: username %q has no expiry: %w", username, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

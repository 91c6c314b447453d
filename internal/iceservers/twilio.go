package iceservers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/medicox/meeting-signaling/internal/config"
)

// maxTwilioResponseBytes caps how much of a token response is read.
const maxTwilioResponseBytes = 64 * 1024

// TwilioSource mints TURN credentials through Twilio's Network Traversal
// Service token endpoint.
type TwilioSource struct {
	cfg    config.TwilioConfig
	client *http.Client
}

func NewTwilioSource(cfg config.TwilioConfig, client *http.Client) *TwilioSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &TwilioSource{cfg: cfg, client: client}
}

func (*TwilioSource) Name() string { return "twilio" }

type twilioToken struct {
	ICEServers []twilioICEServer `json:"ice_servers"`
}

type twilioICEServer struct {
	URLs       config.URLList `json:"urls"`
	URL        string         `json:"url"`
	Username   string         `json:"username"`
	Credential string         `json:"credential"`
}

func (s *TwilioSource) TURNServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	if !s.cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	endpoint := s.cfg.APIBaseURL + "/2010-04-01/Accounts/" + url.PathEscape(s.cfg.AccountSID) + "/Tokens.json"
	form := url.Values{}
	if s.cfg.TokenTTLSeconds > 0 {
		form.Set("Ttl", strconv.FormatInt(s.cfg.TokenTTLSeconds, 10))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("twilio: build request: %w", err)
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("twilio: request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTwilioResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("twilio: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("twilio: unexpected status %d", resp.StatusCode)
	}

	var token twilioToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("twilio: decode response: %w", err)
	}

	out := make([]webrtc.ICEServer, 0, len(token.ICEServers))
	for i, entry := range token.ICEServers {
		urls := []string(entry.URLs)
		if len(urls) == 0 && entry.URL != "" {
			urls = []string{entry.URL}
		}
		// The base list already carries STUN.
		urls = turnURLs(urls)
		if len(urls) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: urls, Username: entry.Username}
		if entry.Credential != "" {
			server.Credential = entry.Credential
		}
		if err := config.ValidateICEServer(server, true); err != nil {
			return nil, fmt.Errorf("twilio: ice_servers[%d]: %w", i, err)
		}
		out = append(out, server)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("twilio: response has no TURN servers")
	}
	return out, nil
}

func turnURLs(urls []string) []string {
	out := urls[:0:0]
	for _, u := range urls {
		scheme := strings.ToLower(u)
		if strings.HasPrefix(scheme, "turn:") || strings.HasPrefix(scheme, "turns:") {
			out = append(out, u)
		}
	}
	return out
}

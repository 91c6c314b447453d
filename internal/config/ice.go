package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNURLs is used when STUN_URLS is unset.
const DefaultSTUNURLs = "stun:stun.l.google.com:19302"

// URLList decodes either a single string or an array of strings, matching
// the RTCIceServer "urls" member.
type URLList []string

func (s *URLList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = URLList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type iceServerJSON struct {
	URLs       URLList `json:"urls"`
	Username   string  `json:"username,omitempty"`
	Credential string  `json:"credential,omitempty"`
}

// ParseICEServersJSON parses ICE_SERVERS_JSON, a JSON array of
// RTCIceServer-shaped objects.
func ParseICEServersJSON(raw string) ([]webrtc.ICEServer, error) {
	var servers []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, err
	}

	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, server := range servers {
		s := webrtc.ICEServer{
			URLs:     splitCommaSeparated(strings.Join(server.URLs, ",")),
			Username: strings.TrimSpace(server.Username),
		}
		if cred := strings.TrimSpace(server.Credential); cred != "" {
			s.Credential = cred
		}
		if err := ValidateICEServer(s, true); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseSTUNServers builds a single ICE server entry from a comma-separated
// STUN URL list. TURN URLs are rejected here; they belong to TURN_URLS.
func ParseSTUNServers(raw string) ([]webrtc.ICEServer, error) {
	urls := splitCommaSeparated(raw)
	if len(urls) == 0 {
		return nil, nil
	}
	for _, u := range urls {
		uri, err := stun.ParseURI(u)
		if err != nil {
			return nil, fmt.Errorf("invalid STUN url %q: %w", u, err)
		}
		if uri.Scheme != stun.SchemeTypeSTUN && uri.Scheme != stun.SchemeTypeSTUNS {
			return nil, fmt.Errorf("%q is not a stun: or stuns: url", u)
		}
	}
	return []webrtc.ICEServer{{URLs: urls}}, nil
}

// ParseTURNURLs validates a comma-separated TURN URL list.
func ParseTURNURLs(raw string) ([]string, error) {
	urls := splitCommaSeparated(raw)
	for _, u := range urls {
		uri, err := stun.ParseURI(u)
		if err != nil {
			return nil, fmt.Errorf("invalid TURN url %q: %w", u, err)
		}
		if !isTURNScheme(uri.Scheme) {
			return nil, fmt.Errorf("%q is not a turn: or turns: url", u)
		}
	}
	return urls, nil
}

// ValidateICEServer checks every URL parses as a STUN/TURN URI. When
// requireTURNCreds is set, servers carrying TURN URLs must have a username
// and a string credential.
func ValidateICEServer(server webrtc.ICEServer, requireTURNCreds bool) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}

	hasTURN := false
	for _, raw := range server.URLs {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			return fmt.Errorf("invalid url %q: %w", raw, err)
		}
		if isTURNScheme(uri.Scheme) {
			hasTURN = true
		}
	}

	if hasTURN && requireTURNCreds {
		if server.Username == "" {
			return errors.New("turn urls require username")
		}
		cred, ok := server.Credential.(string)
		if !ok || cred == "" {
			return errors.New("turn urls require credential")
		}
	}
	return nil
}

func isTURNScheme(s stun.SchemeType) bool {
	return s == stun.SchemeTypeTURN || s == stun.SchemeTypeTURNS
}

func splitCommaSeparated(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

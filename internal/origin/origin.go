// Package origin normalizes browser Origin headers and decides whether a
// cross-origin caller may use the signaling endpoints.
package origin

import (
	"net/url"
	"strconv"
	"strings"
)

// Wildcard in an allow-list admits every origin.
const Wildcard = "*"

// NormalizeHeader validates an Origin header value and returns it as
// scheme://host[:port] with default ports removed, plus the host[:port] part
// for same-host comparisons. "null" is accepted and returned as-is.
func NormalizeHeader(originHeader string) (normalized string, host string, ok bool) {
	trimmed := strings.TrimSpace(originHeader)
	switch trimmed {
	case "":
		return "", "", false
	case "null":
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = canonicalHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

// Policy is an origin allow-list. An empty list means same-host only.
type Policy struct {
	Allowed []string
}

// Check normalizes originHeader and reports whether it may talk to a server
// reached as requestHost. An absent Origin header is always allowed since
// non-browser clients (the mobile app) do not send one.
func (p Policy) Check(originHeader, requestHost string) (normalized string, allowed bool) {
	if strings.TrimSpace(originHeader) == "" {
		return "", true
	}
	normalized, originHost, ok := NormalizeHeader(originHeader)
	if !ok {
		return "", false
	}
	return normalized, IsAllowed(normalized, originHost, requestHost, p.Allowed)
}

// AllowsAny reports whether the list contains the wildcard.
func (p Policy) AllowsAny() bool {
	for _, a := range p.Allowed {
		if a == Wildcard {
			return true
		}
	}
	return false
}

// IsAllowed reports whether a normalized origin may access requestHost.
//
// With a non-empty allow-list the origin must appear in it (or the list must
// contain "*"). Otherwise the origin's host[:port] must equal the request
// Host. Schemes are not compared because TLS is usually terminated in front of
// the server.
func IsAllowed(normalized, originHost, requestHost string, allowed []string) bool {
	if len(allowed) > 0 {
		for _, a := range allowed {
			if a == Wildcard || a == normalized {
				return true
			}
		}
		return false
	}

	scheme, _, found := strings.Cut(normalized, "://")
	if !found || (scheme != "http" && scheme != "https") {
		return false
	}
	reqHost, ok := canonicalHost(strings.TrimSpace(requestHost), scheme)
	if !ok {
		return false
	}
	return originHost == reqHost
}

// canonicalHost lower-cases an authority, validates its port and drops the
// port when it is the scheme default. IPv6 literals keep their brackets.
func canonicalHost(authority, scheme string) (string, bool) {
	hostname, port, ok := splitHostPort(strings.ToLower(authority))
	if !ok || hostname == "" {
		return "", false
	}
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
			port = ""
		} else {
			port = strconv.FormatUint(n, 10)
		}
	}

	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}
	if port == "" {
		return hostname, true
	}
	return hostname + ":" + port, true
}

func splitHostPort(authority string) (hostname, port string, ok bool) {
	if authority == "" {
		return "", "", false
	}
	if rest, isV6 := strings.CutPrefix(authority, "["); isV6 {
		hostname, after, found := strings.Cut(rest, "]")
		if !found {
			return "", "", false
		}
		if after == "" {
			return hostname, "", true
		}
		port, found = strings.CutPrefix(after, ":")
		if !found || port == "" {
			return "", "", false
		}
		return hostname, port, true
	}

	hostname, port, found := strings.Cut(authority, ":")
	if !found {
		return authority, "", true
	}
	if hostname == "" || port == "" || strings.Contains(port, ":") {
		// Unbracketed IPv6 literals are not valid authorities.
		return "", "", false
	}
	return hostname, port, true
}

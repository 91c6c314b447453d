package origin

import "testing"

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in         string
		normalized string
		host       string
		ok         bool
	}{
		{in: "HTTPS://Example.COM", normalized: "https://example.com", host: "example.com", ok: true},
		{in: "https://example.com:443", normalized: "https://example.com", host: "example.com", ok: true},
		{in: "http://localhost:8081/", normalized: "http://localhost:8081", host: "localhost:8081", ok: true},
		{in: "http://[::1]:3000", normalized: "http://[::1]:3000", host: "[::1]:3000", ok: true},
		{in: "null", normalized: "null", host: "", ok: true},
		{in: "", ok: false},
		{in: "ftp://example.com", ok: false},
		{in: "https://example.com/path", ok: false},
		{in: "https://example.com/?q=1", ok: false},
		{in: "https://user@example.com", ok: false},
		{in: "https://example.com:0", ok: false},
		{in: "https://example.com:99999", ok: false},
		{in: "http://::1", ok: false},
	}
	for _, tc := range cases {
		normalized, host, ok := NormalizeHeader(tc.in)
		if ok != tc.ok {
			t.Fatalf("NormalizeHeader(%q) ok=%v, want %v", tc.in, ok, tc.ok)
		}
		if !ok {
			continue
		}
		if normalized != tc.normalized || host != tc.host {
			t.Fatalf("NormalizeHeader(%q)=(%q,%q), want (%q,%q)", tc.in, normalized, host, tc.normalized, tc.host)
		}
	}
}

func TestIsAllowed_SameHostDefault(t *testing.T) {
	t.Parallel()

	normalized, host, _ := NormalizeHeader("https://meet.example.com")
	if !IsAllowed(normalized, host, "meet.example.com:443", nil) {
		t.Fatalf("expected same host with default port to be allowed")
	}
	if IsAllowed(normalized, host, "other.example.com", nil) {
		t.Fatalf("expected different host to be rejected")
	}
	if IsAllowed("null", "", "meet.example.com", nil) {
		t.Fatalf("expected null origin to be rejected without an allow-list")
	}
}

func TestIsAllowed_AllowList(t *testing.T) {
	t.Parallel()

	allowed := []string{"https://app.example.com"}
	if !IsAllowed("https://app.example.com", "app.example.com", "api.example.com", allowed) {
		t.Fatalf("expected listed origin to be allowed")
	}
	if IsAllowed("https://evil.example.com", "evil.example.com", "evil.example.com", allowed) {
		t.Fatalf("expected unlisted origin to be rejected even when same host")
	}
	if !IsAllowed("https://anything.test", "anything.test", "api.example.com", []string{Wildcard}) {
		t.Fatalf("expected wildcard to allow any origin")
	}
}

func TestPolicyCheck(t *testing.T) {
	t.Parallel()

	p := Policy{}
	if _, ok := p.Check("", "localhost:5000"); !ok {
		t.Fatalf("expected missing Origin header to be allowed")
	}
	if _, ok := p.Check("not a url", "localhost:5000"); ok {
		t.Fatalf("expected malformed Origin header to be rejected")
	}
	got, ok := p.Check("http://localhost:5000", "localhost:5000")
	if !ok || got != "http://localhost:5000" {
		t.Fatalf("Check=(%q,%v), want (%q,true)", got, ok, "http://localhost:5000")
	}
	if p.AllowsAny() {
		t.Fatalf("empty policy must not allow any origin")
	}
	if !(Policy{Allowed: []string{"https://a.test", Wildcard}}).AllowsAny() {
		t.Fatalf("expected wildcard policy to report AllowsAny")
	}
}

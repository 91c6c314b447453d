package config

import (
	"encoding/json"
	"testing"
)

func TestParseICEServersJSON(t *testing.T) {
	t.Parallel()

	raw := `[
	  {"urls": ["stun:stun.example.com:3478"]},
	  {"urls": "turn:turn.example.com:3478?transport=udp", "username": "user", "credential": "pass"}
	]`

	servers, err := ParseICEServersJSON(raw)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(servers))
	}
	if got := servers[0].URLs; len(got) != 1 || got[0] != "stun:stun.example.com:3478" {
		t.Fatalf("unexpected stun urls: %#v", got)
	}
	if got := servers[1].Username; got != "user" {
		t.Fatalf("unexpected username: %q", got)
	}
	cred, ok := servers[1].Credential.(string)
	if !ok || cred != "pass" {
		t.Fatalf("unexpected credential: %#v", servers[1].Credential)
	}
}

func TestParseICEServersJSON_RejectsTURNWithoutCreds(t *testing.T) {
	t.Parallel()

	if _, err := ParseICEServersJSON(`[{"urls": ["turn:turn.example.com:3478"]}]`); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseICEServersJSON_RejectsBadScheme(t *testing.T) {
	t.Parallel()

	if _, err := ParseICEServersJSON(`[{"urls": ["http://example.com"]}]`); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseSTUNServers(t *testing.T) {
	t.Parallel()

	servers, err := ParseSTUNServers(" stun:a.example.com:3478 , stuns:b.example.com ")
	if err != nil {
		t.Fatalf("ParseSTUNServers: %v", err)
	}
	if len(servers) != 1 || len(servers[0].URLs) != 2 {
		t.Fatalf("unexpected servers: %#v", servers)
	}

	if _, err := ParseSTUNServers("turn:turn.example.com"); err == nil {
		t.Fatalf("expected TURN url to be rejected as STUN")
	}

	servers, err = ParseSTUNServers("")
	if err != nil || servers != nil {
		t.Fatalf("empty input: servers=%v err=%v", servers, err)
	}
}

func TestParseTURNURLs(t *testing.T) {
	t.Parallel()

	urls, err := ParseTURNURLs("turn:turn.example.com:3478?transport=udp,turns:turn.example.com:5349?transport=tcp")
	if err != nil {
		t.Fatalf("ParseTURNURLs: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls=%v, want 2 entries", urls)
	}
	if _, err := ParseTURNURLs("stun:stun.example.com"); err == nil {
		t.Fatalf("expected stun url to be rejected as TURN")
	}
}

func TestURLList_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var one URLList
	if err := json.Unmarshal([]byte(`"stun:a"`), &one); err != nil || len(one) != 1 {
		t.Fatalf("single: %v %v", one, err)
	}
	var many URLList
	if err := json.Unmarshal([]byte(`["stun:a","stun:b"]`), &many); err != nil || len(many) != 2 {
		t.Fatalf("many: %v %v", many, err)
	}
	var bad URLList
	if err := json.Unmarshal([]byte(`42`), &bad); err == nil {
		t.Fatalf("expected error for number")
	}
}

package iceservers

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/medicox/meeting-signaling/internal/turnrest"
)

// StaticSource hands out fixed TURN credentials.
type StaticSource struct {
	URLs       []string
	Username   string
	Credential string
}

func (StaticSource) Name() string { return "static" }

func (s StaticSource) TURNServers(context.Context) ([]webrtc.ICEServer, error) {
	if len(s.URLs) == 0 || s.Username == "" || s.Credential == "" {
		return nil, ErrNotConfigured
	}
	return []webrtc.ICEServer{{
		URLs:       append([]string(nil), s.URLs...),
		Username:   s.Username,
		Credential: s.Credential,
	}}, nil
}

// TURNRESTSource signs a fresh short-lived credential per request.
type TURNRESTSource struct {
	URLs      []string
	Generator *turnrest.Generator
}

func (TURNRESTSource) Name() string { return "turn_rest" }

func (s TURNRESTSource) TURNServers(context.Context) ([]webrtc.ICEServer, error) {
	if len(s.URLs) == 0 || s.Generator == nil {
		return nil, ErrNotConfigured
	}
	creds, err := s.Generator.Issue()
	if err != nil {
		return nil, err
	}
	return []webrtc.ICEServer{{
		URLs:       append([]string(nil), s.URLs...),
		Username:   creds.Username,
		Credential: creds.Credential,
	}}, nil
}

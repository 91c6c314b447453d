// Package iceservers assembles the ICE server list handed to meeting clients
// before they create peer connections.
package iceservers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/medicox/meeting-signaling/internal/config"
	"github.com/medicox/meeting-signaling/internal/metrics"
	"github.com/medicox/meeting-signaling/internal/turnrest"
)

// ErrNotConfigured is returned by a Source that has nothing to offer.
var ErrNotConfigured = errors.New("iceservers: source not configured")

// Source yields TURN server entries. Sources are consulted in priority order
// and the first non-empty answer wins.
type Source interface {
	Name() string
	TURNServers(ctx context.Context) ([]webrtc.ICEServer, error)
}

type Provider struct {
	base    []webrtc.ICEServer
	sources []Source
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Options struct {
	// Base entries (STUN) are returned first on every call.
	Base    []webrtc.ICEServer
	Sources []Source
	// Timeout bounds each source call; zero means no extra bound.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func NewProvider(opts Options) *Provider {
	base := opts.Base
	if len(base) == 0 {
		base = []webrtc.ICEServer{{URLs: []string{config.DefaultSTUNURLs}}}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		base:    base,
		sources: opts.Sources,
		timeout: opts.Timeout,
		log:     logger,
		metrics: opts.Metrics,
	}
}

// FromConfig builds the source chain in priority order: Twilio token API,
// static TURN credentials, then TURN REST credentials. Unconfigured sources
// are left out.
func FromConfig(cfg config.Config, client *http.Client, logger *slog.Logger, m *metrics.Metrics) (*Provider, error) {
	var sources []Source
	if cfg.Twilio.Enabled() {
		sources = append(sources, NewTwilioSource(cfg.Twilio, client))
	}
	if cfg.StaticTURNEnabled() {
		sources = append(sources, StaticSource{
			URLs:       cfg.TURNURLs,
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNCredential,
		})
	}
	if cfg.TURNREST.Enabled() && len(cfg.TURNURLs) > 0 {
		gen, err := turnrest.NewGenerator(turnrest.GeneratorConfig{
			SharedSecret:   cfg.TURNREST.SharedSecret,
			TTL:            time.Duration(cfg.TURNREST.TTLSeconds) * time.Second,
			UsernamePrefix: cfg.TURNREST.UsernamePrefix,
		})
		if err != nil {
			return nil, err
		}
		sources = append(sources, TURNRESTSource{URLs: cfg.TURNURLs, Generator: gen})
	}
	return NewProvider(Options{
		Base:    cfg.STUNServers,
		Sources: sources,
		Timeout: cfg.ICEProviderTimeout,
		Logger:  logger,
		Metrics: m,
	}), nil
}

// SourceNames lists configured sources in the order they are tried.
func (p *Provider) SourceNames() []string {
	names := make([]string, 0, len(p.sources))
	for _, s := range p.sources {
		names = append(names, s.Name())
	}
	return names
}

// ICEServers never fails. It returns the base list followed by the entries
// of the first source that answers; any source error falls through to the
// next one and ultimately to the base list alone.
func (p *Provider) ICEServers(ctx context.Context) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(p.base), len(p.base)+2)
	copy(out, p.base)

	for _, src := range p.sources {
		servers, err := p.query(ctx, src)
		if err != nil {
			if !errors.Is(err, ErrNotConfigured) {
				p.metrics.Inc(metrics.ICESourceFailed)
				p.log.Warn("ice source failed, falling back", "source", src.Name(), "err", err)
			}
			continue
		}
		if len(servers) == 0 {
			continue
		}
		return append(out, servers...)
	}
	return out
}

func (p *Provider) query(ctx context.Context, src Source) ([]webrtc.ICEServer, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return src.TURNServers(ctx)
}

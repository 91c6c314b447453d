package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/medicox/meeting-signaling/internal/auth"
	"github.com/medicox/meeting-signaling/internal/config"
	"github.com/medicox/meeting-signaling/internal/httpserver"
	"github.com/medicox/meeting-signaling/internal/iceservers"
	"github.com/medicox/meeting-signaling/internal/journal"
	"github.com/medicox/meeting-signaling/internal/metrics"
	"github.com/medicox/meeting-signaling/internal/signaling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	// A .env file is optional; real environment variables take precedence.
	dotenvErr := godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	if dotenvErr != nil && !errors.Is(dotenvErr, fs.ErrNotExist) {
		logger.Warn("failed to load .env file", "err", dotenvErr)
	}

	m := metrics.New()

	ice, err := iceservers.FromConfig(cfg, &http.Client{Timeout: cfg.ICEProviderTimeout}, logger, m)
	if err != nil {
		logger.Error("failed to configure ice servers", "err", err)
		os.Exit(2)
	}
	verifier, err := auth.NewVerifier(cfg)
	if err != nil {
		logger.Error("failed to configure auth", "err", err)
		os.Exit(2)
	}

	logger.Info("starting meeting-signaling",
		"listen_addr", cfg.ListenAddr,
		"public_base_url", cfg.PublicBaseURL,
		"mode", cfg.Mode,
		"ws_ping_interval", cfg.WSPingInterval,
		"ws_idle_timeout", cfg.WSIdleTimeout,
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
		"ice_sources", ice.SourceNames(),
		"auth_mode", cfg.AuthMode,
		"room_journal", cfg.RoomJournalPath != "",
	)

	logStartupSecurityWarnings(logger, cfg)

	var store *journal.Store
	if cfg.RoomJournalPath != "" {
		store, err = journal.Open(cfg.RoomJournalPath, journal.Options{Logger: logger, Metrics: m})
		if err != nil {
			logger.Error("failed to open room journal", "path", cfg.RoomJournalPath, "err", err)
			os.Exit(1)
		}
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, buildTime := resolveBuildInfo(buildCommit, buildTime)

	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: buildTime}, httpserver.Deps{
		ICE:      ice,
		Metrics:  m,
		Verifier: verifier,
	})

	sigCfg := signaling.ConfigFrom(cfg)
	sigCfg.Logger = logger
	sigCfg.Metrics = m
	sigCfg.Journal = store
	sig := signaling.NewServer(sigCfg)
	sig.RegisterRoutes(srv.Mux())

	m.RegisterGauge("rooms", func() int64 { return int64(sig.Relay().Stats().Rooms) })
	m.RegisterGauge("connections", func() int64 { return int64(sig.Relay().Stats().Connections) })

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journalCloser io.Closer
	if store != nil {
		journalCloser = store
	}

	select {
	case err := <-errCh:
		shutdown(context.Background(), logger, sig, nil, journalCloser)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	shutdown(shutdownCtx, logger, sig, srv, journalCloser)

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}

// Command signaling-server-go runs an in-memory signaling server for client
// end-to-end tests. It accepts every origin, serves STUN-only ICE config and
// prints "READY <port>" once it is listening.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/medicox/meeting-signaling/internal/config"
	"github.com/medicox/meeting-signaling/internal/httpserver"
	"github.com/medicox/meeting-signaling/internal/metrics"
	"github.com/medicox/meeting-signaling/internal/origin"
	"github.com/medicox/meeting-signaling/internal/signaling"
)

func main() {
	bindHost := envOrDefault("BIND_HOST", "127.0.0.1")
	port := envIntOrDefault("PORT", 0)

	if v := os.Getenv("AUTH_MODE"); v != "" && v != string(config.AuthModeNone) {
		fmt.Fprintf(os.Stderr, "unsupported AUTH_MODE=%s\n", v)
		os.Exit(2)
	}

	listenAddr := net.JoinHostPort(bindHost, strconv.Itoa(port))
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listen %s: %v\n", listenAddr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	m := metrics.New()

	// Short liveness timings so tests observe peer-left for killed clients
	// quickly.
	pingInterval := time.Duration(envIntOrDefault("PING_INTERVAL_MS", 500)) * time.Millisecond

	cfg := config.Config{
		ListenAddr:     listenAddr,
		AllowedOrigins: []string{origin.Wildcard},
		Mode:           config.ModeDev,
		AuthMode:       config.AuthModeNone,
	}
	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: "e2e"}, httpserver.Deps{Metrics: m})
	sig := signaling.NewServer(signaling.Config{
		Logger:               logger,
		Metrics:              m,
		OriginPolicy:         cfg.OriginPolicy(),
		PingInterval:         pingInterval,
		IdleTimeout:          4 * pingInterval,
		MaxMessagesPerSecond: config.DefaultMaxSignalingMessagesPerSecond,
	})
	sig.RegisterRoutes(srv.Mux())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	actualPort := ln.Addr().(*net.TCPAddr).Port
	fmt.Printf("READY %d\n", actualPort)

	select {
	case <-ctx.Done():
		sig.Close()
		_ = srv.Shutdown(context.Background())
		<-errCh
	case err := <-errCh:
		sig.Close()
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "http server error: %v\n", err)
			os.Exit(1)
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

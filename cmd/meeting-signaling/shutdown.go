package main

import (
	"context"
	"io"
	"log/slog"
)

// shutdown stops the service in dependency order. The relay closes before
// the HTTP server since hijacked websocket connections are not tracked by
// Shutdown. The journal closes last so it receives the relay's final
// disconnect records. srv and store may be nil.
func shutdown(ctx context.Context, logger *slog.Logger, relay interface{ Close() }, srv interface {
	Shutdown(context.Context) error
}, store io.Closer) {
	relay.Close()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("http server shutdown failed", "err", err)
		}
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("room journal close failed", "err", err)
		}
	}
}

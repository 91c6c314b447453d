package httpserver

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/medicox/meeting-signaling/internal/auth"
	"github.com/medicox/meeting-signaling/internal/config"
	"github.com/medicox/meeting-signaling/internal/iceservers"
	"github.com/medicox/meeting-signaling/internal/metrics"
	"github.com/medicox/meeting-signaling/internal/ratelimit"
)

var ErrServerClosed = http.ErrServerClosed

type BuildInfo struct {
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
}

// Deps are the collaborators behind the stateless endpoints. A nil ICE
// provider serves the public STUN default; a nil Verifier disables auth.
type Deps struct {
	ICE      *iceservers.Provider
	Metrics  *metrics.Metrics
	Verifier auth.Verifier
}

type Server struct {
	log     *slog.Logger
	cfg     config.Config
	build   BuildInfo
	ice     *iceservers.Provider
	metrics *metrics.Metrics
	auth    auth.Verifier
	iceRate *ratelimit.KeyedLimiter

	ready atomic.Bool

	mux *http.ServeMux
	srv *http.Server
}

func New(cfg config.Config, logger *slog.Logger, build BuildInfo, deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	ice := deps.ICE
	if ice == nil {
		ice = iceservers.NewProvider(iceservers.Options{Base: cfg.STUNServers, Logger: logger, Metrics: deps.Metrics})
	}
	s := &Server{
		log:     logger,
		cfg:     cfg,
		build:   build,
		ice:     ice,
		metrics: deps.Metrics,
		auth:    deps.Verifier,
		mux:     http.NewServeMux(),
	}
	if cfg.ICERateLimitPerMinute > 0 {
		s.iceRate = ratelimit.NewKeyedLimiter(nil, int64(cfg.ICERateLimitPerMinute), time.Minute, ratelimit.DefaultMaxKeys)
	}

	s.registerRoutes()

	handler := chain(s.mux,
		recoverMiddleware(s.log),
		requestIDMiddleware(),
		requestLoggerMiddleware(s.log),
		s.originMiddleware(),
	)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Other timeouts stay zero: /ws connections are long-lived and bound
		// their own reads and writes.
	}

	return s
}

// Mux returns the underlying ServeMux for registering additional routes.
// It must only be used during startup before Serve is called.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

func (s *Server) Serve(l net.Listener) error {
	s.ready.Store(true)
	s.log.Info("http server serving", "addr", l.Addr().String())
	return s.srv.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	s.mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
	})

	s.mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, s.build)
	})

	s.mux.HandleFunc("GET /turn", s.handleICEServers)
	s.mux.HandleFunc("GET /api/ice-servers", s.handleICEServers)

	s.mux.Handle("GET /metrics", metrics.PrometheusHandler(s.metrics))
}

func (s *Server) handleICEServers(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authorize(s.auth, r); err != nil {
		s.metrics.Inc(metrics.ICEAuthFailure)
		msg := "invalid credentials"
		if errors.Is(err, auth.ErrMissingCredentials) {
			msg = "missing credentials"
		}
		WriteJSON(w, http.StatusUnauthorized, map[string]any{"error": msg})
		return
	}
	if s.iceRate != nil && !s.iceRate.Allow(clientIP(r, s.cfg.TrustProxy)) {
		s.metrics.Inc(metrics.ICERateLimited)
		w.Header().Set("Retry-After", "60")
		WriteJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many requests"})
		return
	}

	s.metrics.Inc(metrics.ICERequest)
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, map[string]any{"iceServers": s.ice.ICEServers(r.Context())})
}

type Middleware func(http.Handler) http.Handler

func chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	h := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func recoverMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in http handler", "recover", rec, "stack", string(debug.Stack()))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				var buf [16]byte
				if _, err := rand.Read(buf[:]); err == nil {
					reqID = hex.EncodeToString(buf[:])
				}
			}
			if reqID != "" {
				r.Header.Set("X-Request-ID", reqID)
				w.Header().Set("X-Request-ID", reqID)
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("httpserver: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func requestLoggerMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r)

			reqID := r.Header.Get("X-Request-ID")
			logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"request_id", reqID,
			)
		})
	}
}

// WriteJSON writes a JSON response body and sets the Content-Type header.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func (s *Server) Close() error {
	s.ready.Store(false)
	return s.srv.Close()
}

package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/medicox/meeting-signaling/internal/config"
	"github.com/medicox/meeting-signaling/internal/journal"
	"github.com/medicox/meeting-signaling/internal/metrics"
	"github.com/medicox/meeting-signaling/internal/origin"
)

const (
	maxRequestBodyBytes = 4 * 1024
	maxRoomIDLength     = 128
	createdRoomIDLength = 8
)

type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Journal is optional; when nil the room events endpoint answers 404.
	Journal *journal.Store

	OriginPolicy  origin.Policy
	PublicBaseURL string

	PingInterval         time.Duration
	IdleTimeout          time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	SendQueueLength      int
}

// ConfigFrom maps process configuration onto signaling settings.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		OriginPolicy:         cfg.OriginPolicy(),
		PublicBaseURL:        cfg.PublicBaseURL,
		PingInterval:         cfg.WSPingInterval,
		IdleTimeout:          cfg.WSIdleTimeout,
		MaxMessageBytes:      cfg.MaxSignalingMessageBytes,
		MaxMessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
		SendQueueLength:      cfg.SendQueueLength,
	}
}

type Server struct {
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	relay   *Relay

	upgrader websocket.Upgrader
	stop     context.CancelFunc
}

// NewServer builds the relay and starts its liveness loop. Close stops it.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	var recorder Recorder
	if cfg.Journal != nil {
		recorder = cfg.Journal
	}

	s := &Server{
		cfg:     cfg,
		log:     logger,
		metrics: cfg.Metrics,
		relay: NewRelay(RelayConfig{
			Logger:   logger,
			Metrics:  cfg.Metrics,
			Recorder: recorder,
		}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			_, ok := cfg.OriginPolicy.Check(r.Header.Get("Origin"), r.Host)
			return ok
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.relay.RunLiveness(ctx, s.pingInterval())
	return s
}

func (s *Server) Relay() *Relay {
	return s.relay
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /api/create-room", s.handleCreateRoom)
	mux.HandleFunc("POST /api/kick", s.handleKick)
	mux.HandleFunc("GET /api/rooms/{room}/events", s.handleRoomEvents)
}

// Close stops liveness checks and disconnects every client.
func (s *Server) Close() {
	s.stop()
	s.relay.Close()
}

func (s *Server) pingInterval() time.Duration {
	if s.cfg.PingInterval > 0 {
		return s.cfg.PingInterval
	}
	return config.DefaultWSPingInterval
}

func (s *Server) idleTimeout() time.Duration {
	if s.cfg.IdleTimeout > 0 {
		return s.cfg.IdleTimeout
	}
	return config.DefaultWSIdleTimeout
}

func (s *Server) maxMessageBytes() int64 {
	if s.cfg.MaxMessageBytes > 0 {
		return s.cfg.MaxMessageBytes
	}
	return config.DefaultMaxSignalingMessageBytes
}

func (s *Server) sendQueueLength() int {
	if s.cfg.SendQueueLength > 0 {
		return s.cfg.SendQueueLength
	}
	return config.DefaultSendQueueLength
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.cfg.OriginPolicy.Check(r.Header.Get("Origin"), r.Host); !ok {
		s.metrics.Inc(metrics.ConnectionRejected)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.log.Debug("websocket upgrade failed", "err", err)
		return
	}
	s.serveConn(conn)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.relay.Stats())
}

type createRoomRequest struct {
	RoomID string `json:"roomId"`
}

type createRoomResponse struct {
	RoomID  string `json:"roomId"`
	JoinURL string `json:"joinUrl"`
}

// handleCreateRoom mints a room id and a shareable join link. Rooms are
// created lazily on first join, so nothing is reserved here.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !s.readJSONBody(w, r, &req) {
		return
	}

	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		roomID = uuid.NewString()[:createdRoomIDLength]
	}
	if len(roomID) > maxRoomIDLength {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "roomId too long"})
		return
	}

	writeJSON(w, http.StatusOK, createRoomResponse{
		RoomID:  roomID,
		JoinURL: s.baseURL(r) + "/join?room=" + url.QueryEscape(roomID),
	})
}

// readJSONBody decodes a small optional JSON body into v. An empty body
// leaves v untouched. On failure it writes the error response and reports
// false.
func (s *Server) readJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read body"})
		return false
	}
	if len(body) > maxRequestBodyBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "body too large"})
		return false
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return false
		}
	}
	return true
}

type kickRequest struct {
	RoomID   string `json:"roomId"`
	PeerID   string `json:"peerId"`
	OwnerKey string `json:"ownerKey"`
}

// handleKick lets a room owner remove a member. The owner authenticates with
// the ownerKey from its joined or owner-changed frame.
func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	var req kickRequest
	if !s.readJSONBody(w, r, &req) {
		return
	}
	if req.RoomID == "" || req.PeerID == "" || req.OwnerKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "roomId, peerId and ownerKey are required"})
		return
	}

	err := s.relay.Kick(req.RoomID, req.PeerID, req.OwnerKey)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrPeerNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, ErrNotRoomOwner):
		writeJSON(w, http.StatusForbidden, map[string]any{"error": err.Error()})
	default:
		s.log.Error("kick failed", "room", req.RoomID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

// baseURL prefers the configured public URL and otherwise reconstructs one
// from the request, honoring X-Forwarded-Proto set by a TLS proxy.
func (s *Server) baseURL(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return s.cfg.PublicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (s *Server) handleRoomEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "room journal disabled"})
		return
	}
	room := r.PathValue("room")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	events, err := s.cfg.Journal.RoomEvents(r.Context(), room, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("failed to read room journal", "room", room, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room": room, "events": events})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

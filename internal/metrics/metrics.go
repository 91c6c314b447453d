package metrics

import "sync"

// Event counter names.
const (
	ConnectionOpened    = "ws_connection_opened"
	ConnectionClosed    = "ws_connection_closed"
	ConnectionRejected  = "ws_connection_rejected_origin"
	LivenessTimeout     = "ws_liveness_timeout"
	RoomJoined          = "room_joined"
	RoomLeft            = "room_left"
	RoomCreated         = "room_created"
	RoomDeleted         = "room_deleted"
	RoomOwnerChanged    = "room_owner_changed"
	PeerKicked          = "peer_kicked"
	SignalRelayed       = "signal_relayed"
	SignalDropped       = "signal_dropped_unknown_peer"
	MessageRejected     = "message_rejected"
	MessageRateLimited  = "message_rate_limited"
	MessageTooLarge     = "message_too_large"
	SendQueueOverflow   = "send_queue_overflow"
	ICERequest          = "ice_request"
	ICESourceFailed     = "ice_source_failed"
	ICERateLimited      = "ice_rate_limited"
	ICEAuthFailure      = "ice_auth_failure"
	JournalDropped      = "journal_event_dropped"
	JournalWriteFailure = "journal_write_failure"
)

// Metrics is a concurrency-safe counter registry with optional gauges that
// are sampled at scrape time.
type Metrics struct {
	mu     sync.Mutex
	m      map[string]uint64
	gauges map[string]func() int64
}

func New() *Metrics {
	return &Metrics{
		m:      make(map[string]uint64),
		gauges: make(map[string]func() int64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

// RegisterGauge installs fn as the source for the gauge name. fn is called
// without Metrics' lock held.
func (m *Metrics) RegisterGauge(name string, fn func() int64) {
	m.mu.Lock()
	m.gauges[name] = fn
	m.mu.Unlock()
}

func (m *Metrics) sampleGauges() map[string]int64 {
	m.mu.Lock()
	fns := make(map[string]func() int64, len(m.gauges))
	for k, fn := range m.gauges {
		fns[k] = fn
	}
	m.mu.Unlock()

	out := make(map[string]int64, len(fns))
	for k, fn := range fns {
		out[k] = fn()
	}
	return out
}

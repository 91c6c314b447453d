package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medicox/meeting-signaling/internal/metrics"
)

type fakePeer struct {
	mu     sync.Mutex
	frames [][]byte
	reject bool
	pings  int
	closed int
}

func (p *fakePeer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject || p.closed > 0 {
		return false
	}
	p.frames = append(p.frames, append([]byte(nil), frame...))
	return true
}

func (p *fakePeer) Ping() {
	p.mu.Lock()
	p.pings++
	p.mu.Unlock()
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	p.closed++
	p.mu.Unlock()
}

func (p *fakePeer) setReject(v bool) {
	p.mu.Lock()
	p.reject = v
	p.mu.Unlock()
}

// take returns and clears the frames received so far.
func (p *fakePeer) take() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.frames
	p.frames = nil
	return out
}

func (p *fakePeer) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) pingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pings
}

type recordedEvent struct {
	room, connID, kind string
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *fakeRecorder) Record(room, connID, kind string) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{room, connID, kind})
	r.mu.Unlock()
}

func (r *fakeRecorder) all() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedEvent(nil), r.events...)
}

// sequentialIDs yields "c1", "c2", ... so tests can assert on ids.
func sequentialIDs() func() string {
	return sequence("c")
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

type testRelay struct {
	*Relay
	metrics  *metrics.Metrics
	recorder *fakeRecorder
}

func newTestRelay(t *testing.T) *testRelay {
	t.Helper()
	m := metrics.New()
	rec := &fakeRecorder{}
	r := newRelay(RelayConfig{Metrics: m, Recorder: rec}, newRegistry(sequentialIDs()))
	// Owner keys are "k1", "k2", ...
	r.newKey = sequence("k")
	return &testRelay{Relay: r, metrics: m, recorder: rec}
}

func (r *testRelay) connect(t *testing.T) (string, *fakePeer) {
	t.Helper()
	p := &fakePeer{}
	id := r.Connect(p)
	require.NotEmpty(t, id)
	return id, p
}

func (r *testRelay) send(t *testing.T, id string, msg map[string]any) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	r.HandleMessage(id, b)
}

func decodeFrames(t *testing.T, frames [][]byte) []map[string]any {
	t.Helper()
	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m), "frame %s", f)
		out = append(out, m)
	}
	return out
}

package signaling

import (
	"context"
	"time"

	"github.com/medicox/meeting-signaling/internal/metrics"
)

// Connect registers p and returns its id. The connection starts outside any
// room and receives nothing until it joins one. After Close, Connect closes
// p and returns "".
func (r *Relay) Connect(p Peer) string {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		p.Close()
		return ""
	}
	c := r.reg.Register(p)
	r.mu.Unlock()

	r.metrics.Inc(metrics.ConnectionOpened)
	r.log.Debug("connection opened", "conn_id", c.ID)
	return c.ID
}

// Disconnect runs the same cleanup as an explicit leave for whatever room id
// is in, then unregisters and closes it. Unknown ids are ignored.
func (r *Relay) Disconnect(id string) {
	r.mu.Lock()
	c, ok := r.dropLocked(id, recordDisconnect)
	r.mu.Unlock()
	if !ok {
		return
	}

	c.peer.Close()
	r.metrics.Inc(metrics.ConnectionClosed)
	r.log.Debug("connection closed", "conn_id", id)
}

func (r *Relay) dropLocked(id, kind string) (*Connection, bool) {
	c, ok := r.reg.Lookup(id)
	if !ok {
		return nil, false
	}
	if c.Room != "" {
		r.leaveLocked(c, c.Room, kind)
	}
	r.reg.Unregister(id)
	return c, true
}

// MarkAlive records a liveness response (pong or any inbound frame).
func (r *Relay) MarkAlive(id string) {
	r.mu.Lock()
	if c, ok := r.reg.Lookup(id); ok {
		c.Alive = true
	}
	r.mu.Unlock()
}

// Sweep performs one liveness round: connections that have not shown any
// sign of life since the previous round are disconnected, the rest are
// marked pending and pinged.
func (r *Relay) Sweep() (evicted int) {
	r.mu.Lock()
	var dead []*Connection
	for _, c := range r.reg.Connections() {
		if c.Alive {
			c.Alive = false
			c.peer.Ping()
			continue
		}
		if dropped, ok := r.dropLocked(c.ID, recordDisconnect); ok {
			dead = append(dead, dropped)
		}
	}
	r.mu.Unlock()

	for _, c := range dead {
		c.peer.Close()
		r.metrics.Inc(metrics.LivenessTimeout)
		r.metrics.Inc(metrics.ConnectionClosed)
		r.log.Info("connection failed liveness check", "conn_id", c.ID)
	}
	return len(dead)
}

// RunLiveness sweeps every interval until ctx is done.
func (r *Relay) RunLiveness(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close disconnects every connection and rejects future ones.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	var all []*Connection
	for _, c := range r.reg.Connections() {
		if dropped, ok := r.dropLocked(c.ID, recordDisconnect); ok {
			all = append(all, dropped)
		}
	}
	r.mu.Unlock()

	for _, c := range all {
		c.peer.Close()
		r.metrics.Inc(metrics.ConnectionClosed)
	}
}

type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Rooms: r.rooms.Len(), Connections: r.reg.Len()}
}

// RoomMembers returns the ids currently in room.
func (r *Relay) RoomMembers(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms.Members(room)
}

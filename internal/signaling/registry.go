package signaling

import (
	"sort"

	"github.com/google/uuid"
)

// Peer is the transport behind a connection.
type Peer interface {
	// Send queues frame for delivery without blocking. It reports false when
	// the frame was dropped (queue full or transport closed).
	Send(frame []byte) bool
	// Ping requests a liveness probe without blocking.
	Ping()
	// Close tears the transport down. It must be idempotent.
	Close()
}

// Connection is the registry's record of one live client.
type Connection struct {
	ID string
	// Room is empty until the connection joins one.
	Room string
	// Alive is cleared by each liveness sweep and set again by any sign of
	// life from the client.
	Alive bool

	peer Peer
}

// Registry assigns connection ids and owns Connection records. It is not
// safe for concurrent use; Relay serializes access.
type Registry struct {
	conns map[string]*Connection
	newID func() string
}

func NewRegistry() *Registry {
	return newRegistry(uuid.NewString)
}

func newRegistry(newID func() string) *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		newID: newID,
	}
}

// Register records p under a fresh random 128-bit id.
func (r *Registry) Register(p Peer) *Connection {
	id := r.newID()
	for r.conns[id] != nil {
		id = r.newID()
	}
	c := &Connection{ID: id, Alive: true, peer: p}
	r.conns[id] = c
	return c
}

// Unregister forgets id. It reports whether id was registered, so a second
// call is a no-op.
func (r *Registry) Unregister(id string) bool {
	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

func (r *Registry) Lookup(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	return len(r.conns)
}

// Connections returns the live connections ordered by id.
func (r *Registry) Connections() []*Connection {
	out := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

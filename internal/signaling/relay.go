package signaling

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/medicox/meeting-signaling/internal/metrics"
)

// Recorder receives room activity for auditing. Implementations must not
// block.
type Recorder interface {
	Record(room, connID, kind string)
}

const (
	recordJoin       = "join"
	recordLeave      = "leave"
	recordDisconnect = "disconnect"
	recordKick       = "kick"
)

const kickedByOwner = "kicked_by_owner"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotRoomOwner = errors.New("only the room owner can kick")
	ErrPeerNotFound = errors.New("peer not found in room")
)

type RelayConfig struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Recorder Recorder
}

// Relay routes signaling messages between connections. Every registry and
// directory mutation, together with the frames it produces, happens under
// mu, which gives each room a single total order of join and leave events.
type Relay struct {
	log      *slog.Logger
	metrics  *metrics.Metrics
	recorder Recorder
	newKey   func() string

	mu     sync.Mutex
	reg    *Registry
	rooms  *Directory
	closed bool
}

func NewRelay(cfg RelayConfig) *Relay {
	return newRelay(cfg, NewRegistry())
}

func newRelay(cfg RelayConfig, reg *Registry) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		log:      logger,
		metrics:  cfg.Metrics,
		recorder: cfg.Recorder,
		newKey:   uuid.NewString,
		reg:      reg,
		rooms:    NewDirectory(reg),
	}
}

// HandleMessage processes one inbound frame from connection id. Malformed
// frames are answered with an error frame; the connection's state is left
// unchanged.
func (r *Relay) HandleMessage(id string, data []byte) {
	msg, parseErr := ParseClientMessage(data)

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.reg.Lookup(id)
	if !ok {
		return
	}
	c.Alive = true

	if parseErr != nil {
		r.rejectLocked(c, parseErr)
		return
	}

	switch msg.Type {
	case TypeJoin:
		r.joinLocked(c, msg.Room, msg.Owner)
	case TypeSignal:
		r.signalLocked(c, msg)
	case TypeLeave:
		r.leaveLocked(c, msg.Room, recordLeave)
	}
}

// SendError replies to id with an error frame.
func (r *Relay) SendError(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.reg.Lookup(id); ok {
		r.rejectLocked(c, &ProtocolError{Message: message})
	}
}

func (r *Relay) rejectLocked(c *Connection, err error) {
	r.metrics.Inc(metrics.MessageRejected)
	msg := "invalid message"
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		msg = protoErr.Message
	}
	r.log.Debug("rejected signaling message", "conn_id", c.ID, "err", msg)
	r.sendLocked(c, encodeError(msg))
}

func (r *Relay) joinLocked(c *Connection, room string, wantOwner bool) {
	// A repeated join is answered again without re-announcing.
	announce := c.Room != room
	if announce {
		if c.Room != "" {
			r.leaveLocked(c, c.Room, recordLeave)
		}
		others := r.rooms.Join(room, c.ID)
		c.Room = room
		if len(others) == 0 {
			r.metrics.Inc(metrics.RoomCreated)
		}
		r.metrics.Inc(metrics.RoomJoined)
		r.record(room, c.ID, recordJoin)
		r.log.Debug("joined room", "conn_id", c.ID, "room", room, "others", len(others))
	}

	owner, key, _ := r.rooms.Owner(room)
	if wantOwner && owner == "" {
		owner, key = c.ID, r.newKey()
		r.rooms.SetOwner(room, owner, key)
		r.log.Debug("room owner claimed", "conn_id", c.ID, "room", room)
	}
	if owner != c.ID {
		key = ""
	}

	others := removeID(r.rooms.Members(room), c.ID)
	r.sendLocked(c, encodeJoined(c.ID, others, owner, key))
	if announce {
		r.broadcastLocked(room, encodeNewPeer(c.ID), c.ID)
	}
}

// leaveLocked removes c from room and announces the departure. It does
// nothing when c is not a member, so repeated cleanup never duplicates
// peer-left. An owner's departure hands the room to the lowest remaining id.
func (r *Relay) leaveLocked(c *Connection, room, kind string) {
	owner, _, _ := r.rooms.Owner(room)
	removed, deleted := r.rooms.Leave(room, c.ID)
	if c.Room == room {
		c.Room = ""
	}
	if !removed {
		return
	}
	r.metrics.Inc(metrics.RoomLeft)
	if deleted {
		r.metrics.Inc(metrics.RoomDeleted)
	}
	r.record(room, c.ID, kind)
	r.log.Debug("left room", "conn_id", c.ID, "room", room, "reason", kind, "room_deleted", deleted)

	r.broadcastLocked(room, encodePeerLeft(c.ID), c.ID)
	if owner == c.ID && !deleted {
		r.promoteLocked(room)
	}
}

func (r *Relay) promoteLocked(room string) {
	members := r.rooms.Members(room)
	if len(members) == 0 {
		return
	}
	next, ok := r.reg.Lookup(members[0])
	if !ok {
		return
	}
	key := r.newKey()
	r.rooms.SetOwner(room, next.ID, key)
	r.metrics.Inc(metrics.RoomOwnerChanged)
	r.log.Debug("room owner promoted", "conn_id", next.ID, "room", room)

	r.sendLocked(next, encodeOwnerChanged(next.ID, key))
	r.broadcastLocked(room, encodeOwnerChanged(next.ID, ""), next.ID)
}

// Kick removes target from room on behalf of the room owner, who proves
// ownership with the key it received in joined or owner-changed. The target
// is sent a kicked frame and then disconnected.
func (r *Relay) Kick(room, target, ownerKey string) error {
	r.mu.Lock()
	_, key, exists := r.rooms.Owner(room)
	if !exists {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(ownerKey)) != 1 {
		r.mu.Unlock()
		return ErrNotRoomOwner
	}
	c, ok := r.reg.Lookup(target)
	if !ok || !r.rooms.Contains(room, target) {
		r.mu.Unlock()
		return ErrPeerNotFound
	}
	r.sendLocked(c, encodeKicked(kickedByOwner))
	r.dropLocked(target, recordKick)
	r.mu.Unlock()

	c.peer.Close()
	r.metrics.Inc(metrics.PeerKicked)
	r.metrics.Inc(metrics.ConnectionClosed)
	r.log.Info("peer kicked", "conn_id", target, "room", room)
	return nil
}

func (r *Relay) signalLocked(c *Connection, msg ClientMessage) {
	target, ok := r.reg.Lookup(msg.To)
	if !ok || !r.rooms.Contains(msg.Room, msg.To) {
		r.metrics.Inc(metrics.SignalDropped)
		r.log.Debug("dropped signal for absent peer", "conn_id", c.ID, "room", msg.Room, "to", msg.To)
		return
	}
	if msg.From != c.ID {
		r.log.Debug("signal from field differs from sender", "conn_id", c.ID, "from", msg.From)
	}
	if r.sendLocked(target, encodeSignal(msg.From, msg.Payload)) {
		r.metrics.Inc(metrics.SignalRelayed)
	}
}

func (r *Relay) sendLocked(c *Connection, frame []byte) bool {
	if c.peer.Send(frame) {
		return true
	}
	r.metrics.Inc(metrics.SendQueueOverflow)
	r.log.Warn("dropped outbound frame", "conn_id", c.ID)
	return false
}

func (r *Relay) broadcastLocked(room string, frame []byte, exclude string) {
	if _, dropped := r.rooms.Broadcast(room, frame, exclude); dropped > 0 {
		r.metrics.Add(metrics.SendQueueOverflow, uint64(dropped))
		r.log.Warn("broadcast skipped peers", "room", room, "dropped", dropped)
	}
}

func (r *Relay) record(room, connID, kind string) {
	if r.recorder != nil {
		r.recorder.Record(room, connID, kind)
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

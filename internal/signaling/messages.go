package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type MessageType string

// Client to server.
const (
	TypeJoin   MessageType = "join"
	TypeSignal MessageType = "signal"
	TypeLeave  MessageType = "leave"
)

// Server to client. TypeSignal is shared by both directions.
const (
	TypeJoined       MessageType = "joined"
	TypeNewPeer      MessageType = "new-peer"
	TypePeerLeft     MessageType = "peer-left"
	TypeOwnerChanged MessageType = "owner-changed"
	TypeKicked       MessageType = "kicked"
	TypeError        MessageType = "error"
)

// ClientMessage is one inbound frame. Payload is kept as the raw bytes the
// client sent.
type ClientMessage struct {
	Type    MessageType     `json:"type"`
	Room    string          `json:"room,omitempty"`
	To      string          `json:"to,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	// Owner on a join claims ownership of the room if it has none.
	Owner bool `json:"owner,omitempty"`
}

// ProtocolError is reported back to the sender as an error frame.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

// ParseClientMessage decodes and validates a frame. Field names are matched
// exactly. Unknown fields are ignored so older and newer clients
// interoperate.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ClientMessage{}, protocolErrorf("invalid JSON message")
	}

	var msg ClientMessage
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"type", (*string)(&msg.Type)},
		{"room", &msg.Room},
		{"to", &msg.To},
		{"from", &msg.From},
	} {
		if raw, ok := fields[f.name]; ok {
			if err := json.Unmarshal(raw, f.dst); err != nil {
				return ClientMessage{}, protocolErrorf("field %q must be a string", f.name)
			}
		}
	}
	if raw, ok := fields["owner"]; ok {
		if err := json.Unmarshal(raw, &msg.Owner); err != nil {
			return ClientMessage{}, protocolErrorf("field %q must be a boolean", "owner")
		}
	}
	msg.Payload = fields["payload"]

	if err := msg.validate(); err != nil {
		return ClientMessage{}, err
	}
	return msg, nil
}

func (m ClientMessage) validate() error {
	switch m.Type {
	case "":
		return protocolErrorf("message type is required")
	case TypeJoin, TypeLeave:
		if m.Room == "" {
			return protocolErrorf("%s requires a non-empty \"room\"", m.Type)
		}
	case TypeSignal:
		for _, f := range []struct{ name, value string }{
			{"room", m.Room},
			{"to", m.To},
			{"from", m.From},
		} {
			if f.value == "" {
				return protocolErrorf("signal requires a non-empty %q", f.name)
			}
		}
		if len(m.Payload) == 0 || bytes.Equal(m.Payload, []byte("null")) {
			return protocolErrorf("signal requires a \"payload\"")
		}
		if m.Payload[0] != '{' {
			return protocolErrorf("signal \"payload\" must be a JSON object")
		}
	default:
		return protocolErrorf("unknown message type %q", m.Type)
	}
	return nil
}

type joinedMessage struct {
	Type   MessageType `json:"type"`
	ID     string      `json:"id"`
	Others []string    `json:"others"`
	// Owner is set when the room has one. OwnerKey only reaches the owner.
	Owner    string `json:"owner,omitempty"`
	OwnerKey string `json:"ownerKey,omitempty"`
}

type peerMessage struct {
	Type MessageType `json:"type"`
	ID   string      `json:"id"`
}

type ownerChangedMessage struct {
	Type     MessageType `json:"type"`
	Owner    string      `json:"owner"`
	OwnerKey string      `json:"ownerKey,omitempty"`
}

type kickedMessage struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason"`
}

type errorMessage struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

func encodeJoined(id string, others []string, owner, ownerKey string) []byte {
	if others == nil {
		others = []string{}
	}
	return mustMarshal(joinedMessage{Type: TypeJoined, ID: id, Others: others, Owner: owner, OwnerKey: ownerKey})
}

func encodeNewPeer(id string) []byte {
	return mustMarshal(peerMessage{Type: TypeNewPeer, ID: id})
}

func encodePeerLeft(id string) []byte {
	return mustMarshal(peerMessage{Type: TypePeerLeft, ID: id})
}

func encodeOwnerChanged(owner, ownerKey string) []byte {
	return mustMarshal(ownerChangedMessage{Type: TypeOwnerChanged, Owner: owner, OwnerKey: ownerKey})
}

func encodeKicked(reason string) []byte {
	return mustMarshal(kickedMessage{Type: TypeKicked, Reason: reason})
}

func encodeError(message string) []byte {
	return mustMarshal(errorMessage{Type: TypeError, Message: message})
}

// encodeSignal splices payload into the frame unchanged. json.Marshal would
// compact and re-escape a RawMessage.
func encodeSignal(from string, payload json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.Grow(len(payload) + len(from) + 40)
	buf.WriteString(`{"type":"signal","from":`)
	buf.Write(mustMarshal(from))
	buf.WriteString(`,"payload":`)
	buf.Write(payload)
	buf.WriteByte('}')
	return buf.Bytes()
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Only fixed, string-typed structs are marshaled here.
		panic(fmt.Sprintf("signaling: marshal %T: %v", v, err))
	}
	return b
}

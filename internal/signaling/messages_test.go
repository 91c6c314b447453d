package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	t.Parallel()

	msg, err := ParseClientMessage([]byte(`{"type":"join","room":"r1","extra":true}`))
	require.NoError(t, err)
	assert.Equal(t, TypeJoin, msg.Type)
	assert.Equal(t, "r1", msg.Room)

	msg, err = ParseClientMessage([]byte(`{"type":"signal","room":"r1","to":"b","from":"a","payload":{"sdp":"x"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeSignal, msg.Type)
	assert.JSONEq(t, `{"sdp":"x"}`, string(msg.Payload))

	msg, err = ParseClientMessage([]byte(`{"type":"join","room":"r1","owner":true}`))
	require.NoError(t, err)
	assert.True(t, msg.Owner)

	msg, err = ParseClientMessage([]byte(`{"type":"signal","room":"r1","to":"b","from":"a","payload":{}}`))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(msg.Payload))
}

func TestParseClientMessageErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"not json", `{"type":`, "invalid JSON message"},
		{"array", `[1,2]`, "invalid JSON message"},
		{"missing type", `{"room":"r1"}`, "message type is required"},
		{"wrong field type", `{"type":"join","room":5}`, `field "room" must be a string`},
		{"join without room", `{"type":"join"}`, `join requires a non-empty "room"`},
		{"leave without room", `{"type":"leave","room":""}`, `leave requires a non-empty "room"`},
		{"signal without to", `{"type":"signal","room":"r","from":"a","payload":{}}`, `signal requires a non-empty "to"`},
		{"signal without from", `{"type":"signal","room":"r","to":"b","payload":{}}`, `signal requires a non-empty "from"`},
		{"signal without payload", `{"type":"signal","room":"r","to":"b","from":"a"}`, `signal requires a "payload"`},
		{"signal with null payload", `{"type":"signal","room":"r","to":"b","from":"a","payload":null}`, `signal requires a "payload"`},
		{"signal with empty string payload", `{"type":"signal","room":"r","to":"b","from":"a","payload":""}`, `signal "payload" must be a JSON object`},
		{"signal with false payload", `{"type":"signal","room":"r","to":"b","from":"a","payload":false}`, `signal "payload" must be a JSON object`},
		{"signal with zero payload", `{"type":"signal","room":"r","to":"b","from":"a","payload":0}`, `signal "payload" must be a JSON object`},
		{"signal with array payload", `{"type":"signal","room":"r","to":"b","from":"a","payload":[]}`, `signal "payload" must be a JSON object`},
		{"upper-case keys", `{"TYPE":"join","ROOM":"r1"}`, "message type is required"},
		{"mixed-case room key", `{"type":"join","Room":"r1"}`, `join requires a non-empty "room"`},
		{"owner not a boolean", `{"type":"join","room":"r1","owner":"yes"}`, `field "owner" must be a boolean`},
		{"null message", `null`, "invalid JSON message"},
		{"unknown type", `{"type":"dance","room":"r"}`, `unknown message type "dance"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(tc.in))
			var protoErr *ProtocolError
			require.ErrorAs(t, err, &protoErr)
			assert.Equal(t, tc.want, protoErr.Message)
		})
	}
}

func TestEncodeJoinedUsesEmptyArray(t *testing.T) {
	t.Parallel()
	assert.JSONEq(t, `{"type":"joined","id":"a","others":[]}`, string(encodeJoined("a", nil, "", "")))
}

func TestEncodeOwnerFrames(t *testing.T) {
	t.Parallel()
	assert.JSONEq(t, `{"type":"joined","id":"a","others":["b"],"owner":"b"}`, string(encodeJoined("a", []string{"b"}, "b", "")))
	assert.JSONEq(t, `{"type":"owner-changed","owner":"a","ownerKey":"k"}`, string(encodeOwnerChanged("a", "k")))
	assert.JSONEq(t, `{"type":"owner-changed","owner":"a"}`, string(encodeOwnerChanged("a", "")))
	assert.JSONEq(t, `{"type":"kicked","reason":"kicked_by_owner"}`, string(encodeKicked(kickedByOwner)))
}

func TestEncodeSignalKeepsPayloadBytes(t *testing.T) {
	t.Parallel()

	payload := json.RawMessage("{ \"sdp\" : \"v=0\\r\\n\",  \"n\": 1.50 }")
	frame := encodeSignal("a\"b", payload)
	assert.Equal(t, `{"type":"signal","from":"a\"b","payload":{ "sdp" : "v=0\r\n",  "n": 1.50 }}`, string(frame))
	assert.True(t, json.Valid(frame))
}

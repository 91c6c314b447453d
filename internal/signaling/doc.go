// Package signaling relays WebRTC session descriptions and ICE candidates
// between the participants of a meeting room.
//
// Clients hold one WebSocket each. A client joins a room, learns the ids of
// the members already present and then exchanges opaque signaling payloads
// with them, addressed by id. The relay only checks that a payload is a JSON
// object and otherwise forwards it untouched.
//
// A member may claim an ownerless room on join. The owner can kick members
// over HTTP using the owner key the relay sent it, and ownership passes to
// the lowest remaining id when the owner leaves.
//
// All room and connection bookkeeping is serialized behind the Relay's
// mutex; outbound frames are queued per connection without blocking, so a
// slow peer only loses its own frames.
package signaling

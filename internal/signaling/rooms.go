package signaling

import "sort"

type roomState struct {
	members map[string]struct{}
	// owner is empty until a member claims the room.
	owner    string
	ownerKey string
}

// Directory maps room names to member connection ids and the room owner.
// Rooms exist only while they have members. Like Registry it relies on Relay
// for serialization.
type Directory struct {
	reg   *Registry
	rooms map[string]*roomState
}

func NewDirectory(reg *Registry) *Directory {
	return &Directory{
		reg:   reg,
		rooms: make(map[string]*roomState),
	}
}

// Join adds id to room, creating the room if needed, and returns the members
// that were already present.
func (d *Directory) Join(room, id string) (others []string) {
	st, ok := d.rooms[room]
	if !ok {
		st = &roomState{members: make(map[string]struct{})}
		d.rooms[room] = st
	}
	others = make([]string, 0, len(st.members))
	for m := range st.members {
		if m != id {
			others = append(others, m)
		}
	}
	sort.Strings(others)
	st.members[id] = struct{}{}
	return others
}

// Leave removes id from room and deletes the room once empty. removed is
// false when id was not a member, in which case nothing changes. A departing
// owner leaves the room without one.
func (d *Directory) Leave(room, id string) (removed, roomDeleted bool) {
	st, ok := d.rooms[room]
	if !ok {
		return false, false
	}
	if _, ok := st.members[id]; !ok {
		return false, false
	}
	delete(st.members, id)
	if st.owner == id {
		st.owner, st.ownerKey = "", ""
	}
	if len(st.members) == 0 {
		delete(d.rooms, room)
		return true, true
	}
	return true, false
}

// Owner returns room's owner and the key that proves ownership. exists is
// false when the room has no members.
func (d *Directory) Owner(room string) (owner, key string, exists bool) {
	st, ok := d.rooms[room]
	if !ok {
		return "", "", false
	}
	return st.owner, st.ownerKey, true
}

// SetOwner makes member id the owner of room. It reports false when id is
// not a member.
func (d *Directory) SetOwner(room, id, key string) bool {
	st, ok := d.rooms[room]
	if !ok {
		return false
	}
	if _, ok := st.members[id]; !ok {
		return false
	}
	st.owner, st.ownerKey = id, key
	return true
}

// Broadcast queues frame to every member of room except exclude. Members
// that are no longer registered, or whose queue rejects the frame, are
// skipped.
func (d *Directory) Broadcast(room string, frame []byte, exclude string) (delivered, dropped int) {
	st, ok := d.rooms[room]
	if !ok {
		return 0, 0
	}
	for id := range st.members {
		if id == exclude {
			continue
		}
		c, ok := d.reg.Lookup(id)
		if !ok || !c.peer.Send(frame) {
			dropped++
			continue
		}
		delivered++
	}
	return delivered, dropped
}

func (d *Directory) Contains(room, id string) bool {
	st, ok := d.rooms[room]
	if !ok {
		return false
	}
	_, ok = st.members[id]
	return ok
}

// Members returns room's member ids in sorted order.
func (d *Directory) Members(room string) []string {
	st, ok := d.rooms[room]
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(st.members))
	for id := range st.members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of non-empty rooms.
func (d *Directory) Len() int {
	return len(d.rooms)
}

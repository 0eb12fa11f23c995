package runtime

import (
	"sync"

	"wavelength/contract"
	"wavelength/domain/chat"
)

type set map[string]struct{}

type connEntry struct {
	userID string
	sink   contract.EventSink
	rooms  map[chat.ConversationID]struct{}
}

// Registry maps live connections to their owning user and to the rooms they
// currently view. A connection belongs to at most one user; a user may hold
// several connections (multi-tab). Room membership only ever contains live
// connections: Unregister prunes every room the connection was in.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connEntry
	users map[string]set
	rooms map[chat.ConversationID]set
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connEntry),
		users: make(map[string]set),
		rooms: make(map[chat.ConversationID]set),
	}
}

// Register adds a connection under userID and reports whether it is the
// user's first live connection (i.e. a presence transition to online).
func (r *Registry) Register(connID, userID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = &connEntry{
		userID: userID,
		sink:   sink,
		rooms:  make(map[chat.ConversationID]struct{}),
	}

	conns, ok := r.users[userID]
	if !ok {
		conns = make(set)
		r.users[userID] = conns
	}
	first := len(conns) == 0
	conns[connID] = struct{}{}
	return first
}

// Unregister removes the connection from its owner's set and from every room
// it belonged to. Unknown connections are a no-op (ok=false): abrupt network
// drops may trigger cleanup twice. last reports whether the owner's
// connection set became empty (presence transition to offline); rooms lists
// the rooms the connection was pruned from, for scoped presence broadcasts.
func (r *Registry) Unregister(connID string) (userID string, last bool, rooms []chat.ConversationID, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return "", false, nil, false
	}
	delete(r.conns, connID)

	for roomID := range entry.rooms {
		rooms = append(rooms, roomID)
		r.dropFromRoom(connID, roomID)
	}

	if conns, exists := r.users[entry.userID]; exists {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.users, entry.userID)
			last = true
		}
	}
	return entry.userID, last, rooms, true
}

// Join adds the connection to the room's membership set. Rooms are created
// lazily on first join; joining twice is idempotent. Joining with an unknown
// connection is refused (the connection raced its own disconnect).
// firstOfUser reports whether none of the owner's connections were in the
// room yet, which is the moment co-members learn the owner is online.
func (r *Registry) Join(connID string, conversationID chat.ConversationID) (userID string, firstOfUser, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return "", false, false
	}

	members, exists := r.rooms[conversationID]
	if !exists {
		members = make(set)
		r.rooms[conversationID] = members
	}

	firstOfUser = true
	for member := range members {
		if other, live := r.conns[member]; live && other.userID == entry.userID {
			firstOfUser = false
			break
		}
	}

	entry.rooms[conversationID] = struct{}{}
	members[connID] = struct{}{}
	return entry.userID, firstOfUser, true
}

// Leave removes the connection from the room; no-op if absent.
// Empty rooms are garbage-collected so the map never grows unbounded.
func (r *Registry) Leave(connID string, conversationID chat.ConversationID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.conns[connID]; ok {
		delete(entry.rooms, conversationID)
	}
	r.dropFromRoom(connID, conversationID)
}

// dropFromRoom must be called with the write lock held.
func (r *Registry) dropFromRoom(connID string, conversationID chat.ConversationID) {
	members, ok := r.rooms[conversationID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, conversationID)
	}
}

// SinksForConversation returns the sinks of every live connection currently
// in the room, for fan-out targeting.
func (r *Registry) SinksForConversation(conversationID chat.ConversationID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[conversationID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for connID := range members {
		if entry, exists := r.conns[connID]; exists {
			sinks = append(sinks, entry.sink)
		}
	}
	return sinks
}

// SinksForConversations resolves the union of the given rooms' members,
// de-duplicated per connection, excluding the given user's own connections.
// Used to scope presence broadcasts to conversation partners.
func (r *Registry) SinksForConversations(conversationIDs []chat.ConversationID, excludeUserID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(set)
	var sinks []contract.EventSink
	for _, roomID := range conversationIDs {
		for connID := range r.rooms[roomID] {
			if _, dup := seen[connID]; dup {
				continue
			}
			entry, exists := r.conns[connID]
			if !exists || entry.userID == excludeUserID {
				continue
			}
			seen[connID] = struct{}{}
			sinks = append(sinks, entry.sink)
		}
	}
	return sinks
}

// RoomsOf returns the rooms a connection is currently a member of.
func (r *Registry) RoomsOf(connID string) []chat.ConversationID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.conns[connID]
	if !ok {
		return nil
	}
	rooms := make([]chat.ConversationID, 0, len(entry.rooms))
	for roomID := range entry.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// RoomsOfUser returns the union of rooms across all of a user's
// connections, de-duplicated.
func (r *Registry) RoomsOfUser(userID string) []chat.ConversationID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[chat.ConversationID]struct{})
	var rooms []chat.ConversationID
	for connID := range r.users[userID] {
		entry, ok := r.conns[connID]
		if !ok {
			continue
		}
		for roomID := range entry.rooms {
			if _, dup := seen[roomID]; !dup {
				seen[roomID] = struct{}{}
				rooms = append(rooms, roomID)
			}
		}
	}
	return rooms
}

// ConnectionCount reports how many live connections a user holds.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// RoomSize reports the current number of connections in a room.
func (r *Registry) RoomSize(conversationID chat.ConversationID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

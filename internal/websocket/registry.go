package websocket

import (
	"sync"

	"github.com/google/uuid"
)

// Peer is one live connection as seen by the registry and router.
type Peer interface {
	ID() string
	UserID() uuid.UUID
	// Send enqueues payload for delivery without blocking.
	Send(payload []byte) error
	Close()
}

// Registry maps live connections to the conversation rooms they joined and
// back. All methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	peers       map[string]Peer
	rooms       map[uuid.UUID]map[string]Peer
	memberships map[string]map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		peers:       make(map[string]Peer),
		rooms:       make(map[uuid.UUID]map[string]Peer),
		memberships: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Register makes a connection known. Registering the same id again replaces
// the peer but keeps its memberships.
func (r *Registry) Register(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	r.peers[id] = p
	if _, ok := r.memberships[id]; !ok {
		r.memberships[id] = make(map[uuid.UUID]struct{})
	}
	for convID := range r.memberships[id] {
		r.rooms[convID][id] = p
	}
}

// Join adds the connection to the room. It returns false only when the
// connection is not registered.
func (r *Registry) Join(connID string, conversationID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[connID]
	if !ok {
		return false
	}
	room, ok := r.rooms[conversationID]
	if !ok {
		room = make(map[string]Peer)
		r.rooms[conversationID] = room
	}
	room[connID] = p
	r.memberships[connID][conversationID] = struct{}{}
	return true
}

func (r *Registry) Leave(connID string, conversationID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, conversationID)
}

func (r *Registry) leaveLocked(connID string, conversationID uuid.UUID) {
	if room, ok := r.rooms[conversationID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, conversationID)
		}
	}
	if rooms, ok := r.memberships[connID]; ok {
		delete(rooms, conversationID)
	}
}

// OnDisconnect drops the connection from every room and forgets it. It
// returns the rooms that were released.
func (r *Registry) OnDisconnect(connID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := r.memberships[connID]
	released := make([]uuid.UUID, 0, len(rooms))
	for convID := range rooms {
		released = append(released, convID)
		r.leaveLocked(connID, convID)
	}
	delete(r.memberships, connID)
	delete(r.peers, connID)
	return released
}

// Members returns a snapshot of the room so callers can deliver without
// holding the lock.
func (r *Registry) Members(conversationID uuid.UUID) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[conversationID]
	out := make([]Peer, 0, len(room))
	for _, p := range room {
		out = append(out, p)
	}
	return out
}

func (r *Registry) Peer(connID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[connID]
	return p, ok
}

func (r *Registry) IsMember(connID string, conversationID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[conversationID][connID]
	return ok
}

// Rooms lists the conversations the connection has joined.
func (r *Registry) Rooms(connID string) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := r.memberships[connID]
	out := make([]uuid.UUID, 0, len(rooms))
	for convID := range rooms {
		out = append(out, convID)
	}
	return out
}

func (r *Registry) RoomSize(conversationID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[conversationID])
}

func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Close forgets every connection and returns them so the caller can shut
// them down.
func (r *Registry) Close() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	r.peers = make(map[string]Peer)
	r.rooms = make(map[uuid.UUID]map[string]Peer)
	r.memberships = make(map[string]map[uuid.UUID]struct{})
	return out
}

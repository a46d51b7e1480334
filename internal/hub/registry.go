package hub

import "sync"

// Registry tracks which live connections belong to which rooms, and which
// connections are open for which recipient. All state is in-memory and
// per-process: a restart clears it and clients rejoin on reconnect.
type Registry struct {
	mu         sync.RWMutex
	rooms      map[string]map[string]struct{} // roomID -> set of connection IDs
	conns      map[string]map[string]struct{} // connID -> set of room IDs
	recipients map[string]map[string]struct{} // userID -> set of connection IDs
	connUser   map[string]string              // connID -> userID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:      make(map[string]map[string]struct{}),
		conns:      make(map[string]map[string]struct{}),
		recipients: make(map[string]map[string]struct{}),
		connUser:   make(map[string]string),
	}
}

// Join adds a connection to a room. Joining twice has no additional effect.
func (r *Registry) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = make(map[string]struct{})
	}
	r.rooms[roomID][connID] = struct{}{}

	if _, ok := r.conns[connID]; !ok {
		r.conns[connID] = make(map[string]struct{})
	}
	r.conns[connID][roomID] = struct{}{}
}

// Leave removes a connection from a room. No-op if absent.
func (r *Registry) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, roomID)
		}
	}
	if joined, ok := r.conns[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(r.conns, connID)
		}
	}
}

// MembersOf returns the connection IDs currently joined to a room.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[roomID]))
	for connID := range r.rooms[roomID] {
		members = append(members, connID)
	}
	return members
}

// Subscribe registers a connection as an open session for a recipient.
func (r *Registry) Subscribe(connID, userID string) {
	if userID == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.recipients[userID]; !ok {
		r.recipients[userID] = make(map[string]struct{})
	}
	r.recipients[userID][connID] = struct{}{}
	r.connUser[connID] = userID
}

// ConnectionsOf returns the connection IDs a recipient has open.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]string, 0, len(r.recipients[userID]))
	for connID := range r.recipients[userID] {
		conns = append(conns, connID)
	}
	return conns
}

// DropConnection removes a connection from every room it belonged to and
// from its recipient subscription. Called exactly once when a connection
// closes, whether cleanly or abruptly.
func (r *Registry) DropConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.conns[connID] {
		if members, ok := r.rooms[roomID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.rooms, roomID)
			}
		}
	}
	delete(r.conns, connID)

	if userID, ok := r.connUser[connID]; ok {
		if conns, ok := r.recipients[userID]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.recipients, userID)
			}
		}
		delete(r.connUser, connID)
	}
}

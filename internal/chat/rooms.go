package chat

import (
	"sort"
	"strings"
	"sync"
)

// RoomID derives the delivery scope for a pair of users: the two ids sorted
// and joined. Symmetric, so both sides compute the same room.
func RoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// Rooms tracks which connections are subscribed to which two-party room.
// Rooms are runtime-only delivery scopes and are never persisted.
type Rooms struct {
	mu sync.RWMutex

	// members maps roomID -> connID -> Conn
	members map[string]map[string]Conn

	// joined maps connID -> set of roomIDs, so a disconnect can leave
	// every room without scanning them all
	joined map[string]map[string]bool
}

// NewRooms returns an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]Conn),
		joined:  make(map[string]map[string]bool),
	}
}

// Join subscribes a connection to a room.
func (r *Rooms) Join(roomID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]Conn)
	}
	r.members[roomID][c.ID()] = c

	if r.joined[c.ID()] == nil {
		r.joined[c.ID()] = make(map[string]bool)
	}
	r.joined[c.ID()][roomID] = true
}

// Members returns the connections currently subscribed to a room.
func (r *Rooms) Members(roomID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conn, 0, len(r.members[roomID]))
	for _, c := range r.members[roomID] {
		out = append(out, c)
	}
	return out
}

// LeaveAll removes a connection from every room it joined. Empty rooms are
// dropped from the registry.
func (r *Rooms) LeaveAll(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for roomID := range r.joined[c.ID()] {
		if m := r.members[roomID]; m != nil {
			delete(m, c.ID())
			if len(m) == 0 {
				delete(r.members, roomID)
			}
		}
	}
	delete(r.joined, c.ID())
}

package chat

import "sync"

// Sessions is the process-wide live mapping from user id to connection.
// There is no persistence: entries vanish on restart and users appear
// offline until they reconnect. Absence of an entry means "store only,
// no real-time push".
type Sessions struct {
	mu     sync.RWMutex
	byUser map[string]Conn
}

// NewSessions returns an empty session directory.
func NewSessions() *Sessions {
	return &Sessions{byUser: make(map[string]Conn)}
}

// Bind maps a user id to a connection, overwriting any previous entry so a
// reconnect or a second device wins (last-writer-wins).
func (s *Sessions) Bind(userID string, c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = c
}

// Lookup returns the live connection for a user, if any.
func (s *Sessions) Lookup(userID string) (Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byUser[userID]
	return c, ok
}

// Release removes the entry currently pointing at this connection. The user
// id is not known at disconnect time, so removal is by reverse lookup. The
// scan and delete happen under one lock, so a rebind racing with a stale
// disconnect can never remove the newer connection's entry.
func (s *Sessions) Release(c Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, bound := range s.byUser {
		if bound.ID() == c.ID() {
			delete(s.byUser, userID)
			return
		}
	}
}

// Len reports the number of live entries.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUser)
}

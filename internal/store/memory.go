package store

import (
	"context"
	"sync"

	"github.com/Mascaro101/Echo-backend/internal/models"
)

// Memory is an in-process store with the same semantics as Mongo.
// It backs the test suite and lets the server run without a database
// (records vanish on restart).
type Memory struct {
	mu       sync.RWMutex
	users    []models.User
	messages []models.Message
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) InsertUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.ID == u.ID || existing.Username == u.Username {
			return ErrDuplicate
		}
	}
	s.users = append(s.users, *u)
	return nil
}

func (s *Memory) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].Username == username {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) InsertMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *m)
	return nil
}

func (s *Memory) ListConversation(_ context.Context, a, b string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Insertion order is creation order, so no sort is needed here.
	var out []models.Message
	for _, m := range s.messages {
		if (m.UserID == a && m.TargetUserID == b) || (m.UserID == b && m.TargetUserID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Memory) MarkSeen(_ context.Context, askerID, targetID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.UserID == targetID && m.TargetUserID == askerID && !m.SeenStatus {
			m.SeenStatus = true
			matched++
		}
	}
	return matched, nil
}

var _ Store = (*Memory)(nil)

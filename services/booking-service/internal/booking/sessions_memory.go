package booking

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process. It serves single-instance
// deployments without Redis; sessions are lost on restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemorySessionStore{ttl: ttl, now: time.Now, sessions: map[string]Session{}}
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, id)
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemorySessionStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess.UpdatedAt = now.UTC()
	s.sessions[sess.ID] = sess
	// Sweep on write so abandoned sessions do not accumulate.
	for id, other := range s.sessions {
		if now.Sub(other.UpdatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

package storage

import (
	"context"
	"sync"
	"time"
)

const maxMemorySessions = 500

// InMemoryStore is a thread-safe store used when neither a database nor
// Redis is configured. Sessions idle for longer than the TTL are dropped.
type InMemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]Session
}

// NewInMemoryStore constructs an empty in-memory store. A zero ttl keeps
// sessions until the process exits or the size cap evicts them.
func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

// CreateSession stores a new session.
func (s *InMemoryStore) CreateSession(_ context.Context, input Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()
	if len(s.sessions) >= maxMemorySessions {
		s.evictOldestLocked()
	}
	s.sessions[input.ID()] = input.Clone()
	return input, nil
}

// GetSession returns a copy of the session.
func (s *InMemoryStore) GetSession(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		delete(s.sessions, id)
		return Session{}, ErrNotFound
	}
	return sess.Clone(), nil
}

// UpdateSession applies fn while holding the store lock, so concurrent
// updates of one session are applied in sequence.
func (s *InMemoryStore) UpdateSession(_ context.Context, id string, fn UpdateFunc) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok || s.expired(current) {
		delete(s.sessions, id)
		return Session{}, ErrNotFound
	}
	next, err := fn(current.Clone())
	if err != nil {
		return Session{}, err
	}
	next.Conversation.ID = id
	s.sessions[id] = next.Clone()
	return next, nil
}

// DeleteSession removes a session by ID.
func (s *InMemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Close satisfies the Store interface.
func (s *InMemoryStore) Close() {}

func (s *InMemoryStore) expired(sess Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.Conversation.UpdatedAt) > s.ttl
}

func (s *InMemoryStore) evictLocked() {
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
		}
	}
}

func (s *InMemoryStore) evictOldestLocked() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, sess := range s.sessions {
		if oldestID == "" || sess.Conversation.UpdatedAt.Before(oldest) {
			oldestID, oldest = id, sess.Conversation.UpdatedAt
		}
	}
	delete(s.sessions, oldestID)
}

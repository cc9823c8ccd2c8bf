package memorystore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hk-meko/hasura-auth/handshake"
)

type entry struct {
	session   handshake.Session
	expiresAt time.Time
}

// Sessions is an in-memory handshake store with TTL expiry. Entries expire
// lazily on access; no background sweeper runs. It is only suitable for
// single-process deployments.
type Sessions struct {
	mu    sync.Mutex
	items map[string]entry
	ttl   time.Duration
}

// NewSessions creates an in-memory store; sessions expire after ttl.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Sessions{items: make(map[string]entry), ttl: ttl}
}

func (s *Sessions) Create(ctx context.Context, sess handshake.Session) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, exists := s.items[sess.ID]; exists && time.Now().Before(it.expiresAt) {
		return errors.New("session id already in use")
	}
	s.items[sess.ID] = entry{session: sess, expiresAt: time.Now().Add(s.ttl)}
	return nil
}

func (s *Sessions) Load(ctx context.Context, id string) (handshake.Session, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return handshake.Session{}, false, nil
	}
	if time.Now().After(it.expiresAt) {
		delete(s.items, id)
		return handshake.Session{}, false, nil
	}
	return it.session, true, nil
}

func (s *Sessions) Save(ctx context.Context, sess handshake.Session) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[sess.ID]
	if !ok || time.Now().After(it.expiresAt) {
		return errors.New("unknown session")
	}
	it.session = sess
	s.items[sess.ID] = it
	return nil
}

func (s *Sessions) Destroy(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps sessions in a bounded LRU whose entries expire after ttl.
type MemoryStore struct {
	cache *expirable.LRU[string, Session]
	ttl   time.Duration
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store holding at most capacity sessions.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, Session](capacity, nil, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, email string) (Session, error) {
	s := Session{
		Token:     uuid.NewString(),
		Email:     email,
		ExpiresAt: m.now().Add(m.ttl),
	}
	m.cache.Add(s.Token, s)
	return s, nil
}

func (m *MemoryStore) Lookup(_ context.Context, token string) (Session, error) {
	s, ok := m.cache.Get(token)
	if !ok || s.Expired(m.now()) {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) Revoke(_ context.Context, token string) error {
	m.cache.Remove(token)
	return nil
}

package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Provider creates the memory for a new conversation.
type Provider func(id string) (ChatMemory, error)

// Store hands out one ChatMemory per conversation ID. Memories idle for
// longer than the TTL are dropped.
type Store struct {
	mu       sync.Mutex
	cache    *cache.Cache
	provider Provider
}

// NewStore creates a store; ttl <= 0 keeps memories forever.
func NewStore(ttl time.Duration, provider Provider) *Store {
	cleanup := ttl
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &Store{cache: cache.New(ttl, cleanup), provider: provider}
}

// Get returns the memory for id, creating it on first use. Each call
// restarts the idle timer.
func (s *Store) Get(id string) (ChatMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(id); ok {
		m := v.(ChatMemory)
		s.cache.SetDefault(id, m)
		return m, nil
	}
	m, err := s.provider(id)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(id, m)
	return m, nil
}

// Delete forgets the memory for id.
func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

// Len returns the number of live memories.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

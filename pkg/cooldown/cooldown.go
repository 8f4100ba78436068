package cooldown

import (
	"context"
	"sync"
	"time"
)

// entry is a held cooldown with its expiry.
type entry struct {
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-process cooldown store with TTL-based
// expiry. State is best-effort and lost on restart, which is acceptable
// for creation cooldowns.
type MemoryStore struct {
	entries         map[string]entry
	mu              sync.Mutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once

	now func() time.Time // test seam
}

// NewMemoryStore creates a cooldown store. cleanupInterval bounds how long
// expired entries linger; lookups never return stale holds regardless.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[string]entry),
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
	}

	go s.cleanup()

	return s
}

// TryAcquire takes the cooldown for key if it is not currently held.
// Returns false and the remaining window while held.
func (s *MemoryStore) TryAcquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok && e.expiresAt.After(now) {
		return false, e.expiresAt.Sub(now), nil
	}

	s.entries[key] = entry{expiresAt: now.Add(window)}
	return true, 0, nil
}

// Release drops the cooldown for key, if held.
func (s *MemoryStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Size returns the number of tracked keys, expired ones included.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cleanup periodically removes expired entries
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCleanup)
	})
}

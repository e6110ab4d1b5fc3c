package ratelimit

import (
	"sync"
	"time"
)

// MemoryStore counts windows in a mutex-protected map. State lives for the
// process lifetime only. The clock is a field so tests can drive window
// expiry deterministically.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Increment(key string, window time.Duration) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok || !now.Before(entry.ResetAt) {
		entry = Entry{Count: 1, ResetAt: now.Add(window)}
	} else {
		entry.Count++
	}
	s.entries[key] = entry
	return entry, nil
}

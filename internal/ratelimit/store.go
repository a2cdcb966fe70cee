package ratelimit

import (
	"sync"
	"time"
)

// Entry is the state of one fixed window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds window counters. Increment must be atomic per key: it either
// starts a fresh window (count 1, ResetAt = now+window) when none is active,
// or bumps the active window's count.
type Store interface {
	Get(key string) (Entry, bool)
	Increment(key string, window time.Duration, now time.Time) Entry
	// Sweep removes windows that have ended and returns how many were dropped.
	Sweep(now time.Time) int
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *MemoryStore) Increment(key string, window time.Duration, now time.Time) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.ResetAt) {
		e = Entry{Count: 1, ResetAt: now.Add(window)}
	} else {
		e.Count++
	}
	s.entries[key] = e
	return e
}

func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if !now.Before(e.ResetAt) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

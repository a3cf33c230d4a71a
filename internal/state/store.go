package state

import (
	"maps"
	"sync"
	"time"
)

// Store keeps the custom state of each thread between runs
type Store struct {
	mu      sync.Mutex
	threads map[string]*storeEntry
	now     func() time.Time
}

type storeEntry struct {
	state      map[string]any
	lastAccess time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		threads: make(map[string]*storeEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the state of a thread, or an empty map
func (s *Store) Get(threadID string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.threads[threadID]
	if !ok {
		return make(map[string]any)
	}
	e.lastAccess = s.now()
	return maps.Clone(e.state)
}

// Set replaces the state of a thread
func (s *Store) Set(threadID string, state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == nil {
		state = make(map[string]any)
	}
	s.threads[threadID] = &storeEntry{state: maps.Clone(state), lastAccess: s.now()}
}

// Merge overlays incoming on the stored state of a thread and returns the result.
// Incoming keys win.
func (s *Store) Merge(threadID string, incoming map[string]any) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]any)
	if e, ok := s.threads[threadID]; ok {
		maps.Copy(merged, e.state)
	}
	maps.Copy(merged, incoming)

	s.threads[threadID] = &storeEntry{state: merged, lastAccess: s.now()}
	return maps.Clone(merged)
}

// Delete forgets a thread
func (s *Store) Delete(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
}

// Cleanup removes threads not accessed within olderThan and returns how many were removed
func (s *Store) Cleanup(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.threads {
		if now.Sub(e.lastAccess) > olderThan {
			delete(s.threads, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of threads with stored state
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.threads)
}

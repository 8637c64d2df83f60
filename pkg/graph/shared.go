package graph

import "sync"

// Shared wraps a Store in a read/write lock, enforcing the concurrency
// contract: mutations go through Write, traversals through Read.
type Shared struct {
	mu    sync.RWMutex
	store *Store
}

// NewShared creates a Shared wrapper around a fresh store.
func NewShared() *Shared {
	return &Shared{store: NewStore()}
}

// Read runs fn with shared (read) access to the graph.
func (s *Shared) Read(fn func(*Store)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.store)
}

// Write runs fn with exclusive (write) access to the graph.
func (s *Shared) Write(fn func(*Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store)
}

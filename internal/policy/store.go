package policy

import "sync/atomic"

// Store holds the current policy behind an atomic pointer so that readers
// (tool handlers) never block on a reload.
type Store struct {
	current atomic.Pointer[Policy]
}

// NewStore seeds a store. pol may be nil (no policy configured).
func NewStore(pol *Policy) *Store {
	s := &Store{}
	if pol == nil {
		pol = &Policy{}
	}
	s.current.Store(pol)
	return s
}

// Get returns the current policy. Never nil.
func (s *Store) Get() *Policy {
	return s.current.Load()
}

// Replace swaps in a new policy.
func (s *Store) Replace(pol *Policy) {
	if pol == nil {
		pol = &Policy{}
	}
	s.current.Store(pol)
}

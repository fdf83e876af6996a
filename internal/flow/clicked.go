package flow

import "sync"

// ClickedSet records button ids that have already been used. A button is
// disabled for the rest of the page instance once claimed.
type ClickedSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewClickedSet creates an empty ClickedSet.
func NewClickedSet() *ClickedSet {
	return &ClickedSet{ids: make(map[string]struct{})}
}

// TryClaim marks id as clicked. Only the first claim returns true.
func (s *ClickedSet) TryClaim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Has reports whether id has been claimed.
func (s *ClickedSet) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ids[id]
	return ok
}

// Snapshot returns the claimed ids.
func (s *ClickedSet) Snapshot() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.ids))
	for id := range s.ids {
		out[id] = true
	}
	return out
}

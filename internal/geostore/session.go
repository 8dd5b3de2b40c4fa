package geostore

import "sync"

// Session is the registry of datasets currently loaded in the interactive
// map/table-of-contents session. The pipeline registers its temporaries here
// and the lifecycle manager removes them again; removal invalidates the
// positions of later entries, so callers re-query after every removal rather
// than iterating a stable index.
type Session struct {
	mu      sync.Mutex
	entries []string
}

// NewSession returns an empty session registry.
func NewSession() *Session {
	return &Session{}
}

// Register appends a dataset name to the session. Duplicate registrations
// are kept; each must be removed individually.
func (s *Session) Register(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, name)
}

// FindIndex returns the position of the first entry with the given name,
// or -1 when no entry matches.
func (s *Session) FindIndex(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e == name {
			return i
		}
	}
	return -1
}

// RemoveAt removes the entry at the given position. Out-of-range positions
// are ignored.
func (s *Session) RemoveAt(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.entries) {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
}

// Registered returns a copy of the registered names in order.
func (s *Session) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	copy(out, s.entries)
	return out
}

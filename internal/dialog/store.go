package dialog

import "sync"

// Store keeps one in-memory session per user and serializes access to it.
// Acquire returns the user's session with its lock held; concurrent events
// for the same user queue up while events for other users proceed.
type Store struct {
	mu      sync.Mutex
	entries map[int64]*storeEntry
}

type storeEntry struct {
	mu      sync.Mutex
	session Session
}

// NewStore returns an empty session store.
func NewStore() *Store {
	return &Store{entries: make(map[int64]*storeEntry)}
}

// Acquire returns the session for userID with its per-user lock held.
// The caller must invoke the release function when done with the session.
// A user seen for the first time starts in the language-selection state.
func (s *Store) Acquire(userID int64) (*Session, func()) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	if !ok {
		e = &storeEntry{}
		e.session.reset()
		s.entries[userID] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	return &e.session, e.mu.Unlock
}

// Clear resets the user's session back to language selection. Unknown users
// are a no-op.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.session.reset()
	e.mu.Unlock()
}

// Len reports how many user sessions exist.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

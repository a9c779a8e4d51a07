package tracking

import (
	"fmt"
	"sync"
	"time"
)

// Store keeps the latest snapshot per key. Each fetch takes a Ticket before
// reading from the backend; a snapshot only replaces the stored one when no
// newer ticket has been committed or invalidated in the meantime, so an
// out-of-order response can never overwrite fresher data.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*storeEntry
	ttl     time.Duration
	now     func() time.Time
}

type storeEntry struct {
	issued    uint64
	committed uint64
	snapshot  *Snapshot
	storedAt  time.Time
}

// Ticket identifies one fetch against a key.
type Ticket struct {
	key        string
	generation uint64
}

// Key builds the store key of an assignment board.
func Key(assignmentID uint, variant Variant) string {
	return fmt.Sprintf("assignment:%d:%s", assignmentID, variant)
}

// NewStore creates a store. A non-positive ttl keeps snapshots until invalidated.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*storeEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Begin issues a ticket for a new fetch of key.
func (s *Store) Begin(key string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(key)
	entry.issued++
	return Ticket{key: key, generation: entry.issued}
}

// Commit installs snapshot if ticket is newer than anything committed for its
// key. It reports whether the snapshot was installed.
func (s *Store) Commit(ticket Ticket, snapshot Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entry(ticket.key)
	if ticket.generation <= entry.committed {
		return false
	}

	stored := snapshot
	entry.committed = ticket.generation
	entry.snapshot = &stored
	entry.storedAt = s.now()
	return true
}

// Load returns the current snapshot of key, if one is stored and fresh.
func (s *Store) Load(key string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || entry.snapshot == nil {
		return Snapshot{}, false
	}
	if s.ttl > 0 && s.now().Sub(entry.storedAt) > s.ttl {
		return Snapshot{}, false
	}
	return *entry.snapshot, true
}

// Invalidate drops the snapshot of key and rejects commits from tickets issued
// before the call.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return
	}
	entry.committed = entry.issued
	entry.snapshot = nil
}

func (s *Store) entry(key string) *storeEntry {
	entry, ok := s.entries[key]
	if !ok {
		entry = &storeEntry{}
		s.entries[key] = entry
	}
	return entry
}

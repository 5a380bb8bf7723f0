// Package queue provides the in-memory queue store with a single current slot.
package queue

import (
	"sync"
	"time"

	"github.com/osa030/tubejuke/internal/domain/track"
)

// DefaultHistorySize is used when a non-positive history size is given.
const DefaultHistorySize = 20

// Snapshot is an immutable copy of the queue state.
type Snapshot struct {
	Current *track.QueueItem
	Pending []track.QueueItem
}

// Store holds pending items and the current slot.
// One mutex guards both, since popping the next item is a compound read-then-set.
type Store struct {
	mu sync.Mutex

	pending []track.QueueItem
	current *track.QueueItem

	history     []track.FinishedItem
	historySize int

	lastEnqueuedAt time.Time

	now func() time.Time
}

// NewStore creates a new queue store.
func NewStore(historySize int) *Store {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Store{
		pending:     make([]track.QueueItem, 0),
		history:     make([]track.FinishedItem, 0, historySize),
		historySize: historySize,
		now:         time.Now,
	}
}

// Enqueue appends an item to the end of the pending queue and returns the stored copy.
// EnqueuedAt is stamped here so it never decreases in append order.
func (s *Store) Enqueue(item track.QueueItem) track.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	if at.Before(s.lastEnqueuedAt) {
		at = s.lastEnqueuedAt
	}
	s.lastEnqueuedAt = at
	item.EnqueuedAt = at

	s.pending = append(s.pending, item)
	return item
}

// TrySetCurrentFromPending pops the head of the pending queue into the current slot
// if the slot is empty. It returns the current item, if any.
func (s *Store) TrySetCurrentFromPending() (track.QueueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return *s.current, true
	}
	if len(s.pending) == 0 {
		return track.QueueItem{}, false
	}

	item := s.pending[0]
	s.pending[0] = track.QueueItem{}
	s.pending = s.pending[1:]
	s.current = &item
	return item, true
}

// ClearCurrent empties the current slot. Calling it on an empty slot is a no-op.
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// ClearCurrentIf empties the current slot only while it holds entryID.
// Reports whether the slot was cleared.
func (s *Store) ClearCurrentIf(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.EntryID != entryID {
		return false
	}
	s.current = nil
	return true
}

// Current returns the current item.
func (s *Store) Current() (track.QueueItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return track.QueueItem{}, false
	}
	return *s.current, true
}

// IsCurrent reports whether the given entry occupies the current slot.
func (s *Store) IsCurrent(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.EntryID == entryID
}

// Snapshot returns a copy of the current item and pending items.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Pending: make([]track.QueueItem, len(s.pending)),
	}
	copy(snap.Pending, s.pending)
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	return snap
}

// Len returns the number of pending items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Finish records a finished item in the bounded history.
func (s *Store) Finish(item track.QueueItem, outcome track.Outcome, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, track.FinishedItem{
		Item:       item,
		Outcome:    outcome,
		Reason:     reason,
		FinishedAt: s.now(),
	})
	if over := len(s.history) - s.historySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
}

// History returns a copy of finished items, oldest first.
func (s *Store) History() []track.FinishedItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]track.FinishedItem, len(s.history))
	copy(result, s.history)
	return result
}

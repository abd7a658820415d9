package progress

import (
	"sync"
	"time"

	"evening/internal/catalog"
	"evening/internal/models"
)

// Tracker owns the current Store of one account and is its single writer.
// Completions are serialized so concurrent calls for the same reader cannot
// interleave between reading the old record and replacing it.
type Tracker struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

// NewTracker creates a tracker starting from initial
func NewTracker(initial Store) *Tracker {
	return &Tracker{store: initial, now: time.Now}
}

// Snapshot returns the current store. Snapshots are immutable and safe to share.
func (t *Tracker) Snapshot() Store {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store
}

// Complete applies MarkStoryCompleted to the current store and swaps in the result.
// It returns the reader's record after the transition.
func (t *Tracker) Complete(cat *catalog.Catalog, key models.ReaderKey, storyID string) (models.ReadingProgress, Transition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next, transition := MarkStoryCompleted(t.store, cat, key, storyID, t.now())
	t.store = next
	record, _ := next.Get(key)
	return record, transition
}

// Reset replaces the whole store, e.g. on sign-in or sign-out
func (t *Tracker) Reset(s Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store = s
}

// Package progress implements the per-reader reading progress state machine.
//
// A reader's progress is either absent or in progress on exactly one series.
// MarkStoryCompleted is the only transition function; Store values are immutable
// snapshots, so a new Store is returned whenever a record changes.
package progress

import (
	"sort"
	"sync/atomic"
	"time"

	"evening/internal/catalog"
	"evening/internal/models"
)

// Transition describes what a completion did to the store
type Transition int

const (
	// TransitionNone means the story id did not resolve to a catalog story
	TransitionNone Transition = iota
	// TransitionDuplicate means the story was already completed in the current series
	TransitionDuplicate
	// TransitionStarted means a new record was created for a reader without progress
	TransitionStarted
	// TransitionAdvanced means the story was added to the current series
	TransitionAdvanced
	// TransitionSwitched means the record was replaced by one for another series
	TransitionSwitched
)

func (t Transition) String() string {
	switch t {
	case TransitionNone:
		return "none"
	case TransitionDuplicate:
		return "duplicate"
	case TransitionStarted:
		return "started"
	case TransitionAdvanced:
		return "advanced"
	case TransitionSwitched:
		return "switched"
	default:
		return "unknown"
	}
}

// Changed reports whether the transition replaced a record
func (t Transition) Changed() bool {
	return t == TransitionStarted || t == TransitionAdvanced || t == TransitionSwitched
}

var revisions atomic.Uint64

func nextRevision() uint64 {
	return revisions.Add(1)
}

// Store maps reader keys to their progress record. The zero value is an empty store.
type Store struct {
	records  map[models.ReaderKey]models.ReadingProgress
	revision uint64
}

// NewStore builds a store from existing records, e.g. loaded on sign-in
func NewStore(records map[models.ReaderKey]models.ReadingProgress) Store {
	copied := make(map[models.ReaderKey]models.ReadingProgress, len(records))
	for k, v := range records {
		copied[k] = v
	}
	return Store{records: copied, revision: nextRevision()}
}

// Get returns the record for a reader
func (s Store) Get(key models.ReaderKey) (models.ReadingProgress, bool) {
	p, ok := s.records[key]
	return p, ok
}

// Len returns the number of readers with progress
func (s Store) Len() int {
	return len(s.records)
}

// Keys returns reader keys ordered by their string form
func (s Store) Keys() []models.ReaderKey {
	keys := make([]models.ReaderKey, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Records returns a copy of all records
func (s Store) Records() map[models.ReaderKey]models.ReadingProgress {
	out := make(map[models.ReaderKey]models.ReadingProgress, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}

// Revision identifies this snapshot. Distinct snapshots never share a revision,
// except that the zero Store always reports 0.
func (s Store) Revision() uint64 {
	return s.revision
}

func (s Store) with(key models.ReaderKey, p models.ReadingProgress) Store {
	next := s.Records()
	next[key] = p
	return Store{records: next, revision: nextRevision()}
}

// MarkStoryCompleted applies a story completion for a reader and returns the
// resulting store. The input store is never modified; when nothing changes the
// same snapshot is returned.
func MarkStoryCompleted(s Store, cat *catalog.Catalog, key models.ReaderKey, storyID string, now time.Time) (Store, Transition) {
	story, ok := cat.Story(storyID)
	if !ok {
		return s, TransitionNone
	}

	current, exists := s.Get(key)
	if exists && current.CompletedStories.Has(storyID) {
		return s, TransitionDuplicate
	}

	if exists && current.SeriesID == story.SeriesID {
		current.CompletedStories = current.CompletedStories.With(storyID)
		current.LastStoryID = storyID
		current.LastReadAt = now
		return s.with(key, current), TransitionAdvanced
	}

	fresh := models.ReadingProgress{
		SeriesID:         story.SeriesID,
		LastStoryID:      storyID,
		CompletedStories: models.NewStorySet(storyID),
		StartedAt:        now,
		LastReadAt:       now,
	}
	if exists {
		return s.with(key, fresh), TransitionSwitched
	}
	return s.with(key, fresh), TransitionStarted
}

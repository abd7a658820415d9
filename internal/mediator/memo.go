package mediator

import (
	"sync"

	"golang.org/x/text/language"

	"evening/internal/catalog"
	"evening/internal/models"
)

type memoKey struct {
	catalog   *catalog.Catalog
	revision  uint64
	reader    models.ReaderKey
	childName string
	gate      Gate
	language  language.Tag
}

// Memo caches the last computed suggestion keyed on the tuple of inputs.
// It never changes the result, only skips recomputation.
type Memo struct {
	mu     sync.Mutex
	key    memoKey
	value  *models.EveningSuggestion
	valid  bool
	misses int
}

func keyOf(in Input) memoKey {
	k := memoKey{
		catalog:  in.Catalog,
		revision: in.Progress.Revision(),
		reader:   in.Reader,
		gate:     in.Gate,
		language: in.Language,
	}
	if id, ok := in.Reader.ChildID(); ok {
		if child, found := in.Family.Child(id); found {
			k.childName = child.Name
		}
	}
	return k
}

// Suggestion returns ComputeSuggestion(in), reusing the previous result when the
// inputs are unchanged. The returned value is a copy owned by the caller.
func (m *Memo) Suggestion(in Input) *models.EveningSuggestion {
	key := keyOf(in)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.valid || m.key != key {
		m.key = key
		m.value = ComputeSuggestion(in)
		m.valid = true
		m.misses++
	}
	if m.value == nil {
		return nil
	}
	out := *m.value
	return &out
}

// Invalidate drops the cached result
func (m *Memo) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = false
	m.value = nil
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidReaderKey is returned when a serialized reader key cannot be parsed
var ErrInvalidReaderKey = errors.New("invalid reader key")

const (
	familyKey   = "family"
	childPrefix = "child:"
)

// ReaderKey identifies whose reading progress is tracked: a specific child or the
// whole family. The zero value is the family reader.
type ReaderKey struct {
	childID string
}

// FamilyReader returns the shared family pseudo-reader
func FamilyReader() ReaderKey {
	return ReaderKey{}
}

// ChildReader returns the reader key of a specific child. An empty id yields the family reader.
func ChildReader(childID string) ReaderKey {
	return ReaderKey{childID: childID}
}

// IsFamily reports whether the key is the family pseudo-reader
func (k ReaderKey) IsFamily() bool {
	return k.childID == ""
}

// ChildID returns the child id and true for a child reader
func (k ReaderKey) ChildID() (string, bool) {
	return k.childID, k.childID != ""
}

// String encodes the key as "family" or "child:<id>"
func (k ReaderKey) String() string {
	if k.IsFamily() {
		return familyKey
	}
	return childPrefix + k.childID
}

// ParseReaderKey decodes the output of ReaderKey.String
func ParseReaderKey(s string) (ReaderKey, error) {
	switch {
	case s == familyKey:
		return FamilyReader(), nil
	case strings.HasPrefix(s, childPrefix) && len(s) > len(childPrefix):
		return ChildReader(strings.TrimPrefix(s, childPrefix)), nil
	default:
		return ReaderKey{}, fmt.Errorf("%w: %q", ErrInvalidReaderKey, s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ReaderKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ReaderKey) UnmarshalText(text []byte) error {
	parsed, err := ParseReaderKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// StorySet is a set of story ids kept sorted and free of duplicates; Has and
// With rely on that. Build sets with NewStorySet, not with a literal. Values
// are never mutated in place; With returns a new set so progress snapshots can
// be shared freely.
type StorySet []string

// UnmarshalJSON accepts ids in any order and normalizes them
func (s *StorySet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("failed to decode story set: %w", err)
	}
	*s = NewStorySet(ids...)
	return nil
}

// NewStorySet builds a set from ids, dropping duplicates
func NewStorySet(ids ...string) StorySet {
	if len(ids) == 0 {
		return StorySet{}
	}
	set := make(StorySet, 0, len(ids))
	for _, id := range ids {
		set = set.With(id)
	}
	return set
}

// Has reports membership
func (s StorySet) Has(id string) bool {
	i := sort.SearchStrings(s, id)
	return i < len(s) && s[i] == id
}

// With returns a set containing id in addition to the current members
func (s StorySet) With(id string) StorySet {
	i := sort.SearchStrings(s, id)
	if i < len(s) && s[i] == id {
		return s
	}
	out := make(StorySet, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, id)
	out = append(out, s[i:]...)
	return out
}

// Len returns the number of members
func (s StorySet) Len() int {
	return len(s)
}

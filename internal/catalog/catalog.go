// Package catalog holds the read-only collection of series and stories and the
// queries the mediator and the completion handler run against it.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"evening/internal/models"
)

// ErrInvalidCatalog is returned when source data breaks a catalog invariant
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is an immutable, ordered collection of series and stories
type Catalog struct {
	series     []models.Series
	seriesByID map[string]int
	stories    map[string]models.Story
	bySeries   map[string][]models.Story // sorted by position
}

// New validates series and stories and builds a catalog. Series keep their declared
// order; stories are ordered by position inside each series.
func New(series []models.Series, stories []models.Story) (*Catalog, error) {
	c := &Catalog{
		series:     make([]models.Series, 0, len(series)),
		seriesByID: make(map[string]int, len(series)),
		stories:    make(map[string]models.Story, len(stories)),
		bySeries:   make(map[string][]models.Story, len(series)),
	}

	for _, s := range series {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: series %q has no id", ErrInvalidCatalog, s.Title)
		}
		if _, exists := c.seriesByID[s.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate series id %q", ErrInvalidCatalog, s.ID)
		}
		if s.AgeRange.Min > s.AgeRange.Max {
			return nil, fmt.Errorf("%w: series %q has age range %d-%d",
				ErrInvalidCatalog, s.ID, s.AgeRange.Min, s.AgeRange.Max)
		}
		c.seriesByID[s.ID] = len(c.series)
		c.series = append(c.series, s)
	}

	positions := make(map[string]map[int]string)
	for _, st := range stories {
		if st.ID == "" {
			return nil, fmt.Errorf("%w: story %q has no id", ErrInvalidCatalog, st.Title)
		}
		if _, exists := c.stories[st.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate story id %q", ErrInvalidCatalog, st.ID)
		}
		if _, ok := c.seriesByID[st.SeriesID]; !ok {
			return nil, fmt.Errorf("%w: story %q references unknown series %q",
				ErrInvalidCatalog, st.ID, st.SeriesID)
		}
		if positions[st.SeriesID] == nil {
			positions[st.SeriesID] = make(map[int]string)
		}
		if other, taken := positions[st.SeriesID][st.Position]; taken {
			return nil, fmt.Errorf("%w: stories %q and %q share position %d in series %q",
				ErrInvalidCatalog, other, st.ID, st.Position, st.SeriesID)
		}
		positions[st.SeriesID][st.Position] = st.ID
		for i, el := range st.Content {
			if el.Type != models.ContentText && el.Type != models.ContentIllustration {
				return nil, fmt.Errorf("%w: story %q element %d has type %q",
					ErrInvalidCatalog, st.ID, i, el.Type)
			}
		}

		c.stories[st.ID] = st
		c.bySeries[st.SeriesID] = append(c.bySeries[st.SeriesID], st)
	}

	for id := range c.bySeries {
		list := c.bySeries[id]
		sort.Slice(list, func(i, j int) bool {
			return list[i].Position < list[j].Position
		})
	}

	return c, nil
}

// Empty reports whether the catalog has no series
func (c *Catalog) Empty() bool {
	return c == nil || len(c.series) == 0
}

// Story resolves a story by id
func (c *Catalog) Story(id string) (models.Story, bool) {
	if c == nil {
		return models.Story{}, false
	}
	st, ok := c.stories[id]
	return st, ok
}

// Series resolves a series by id
func (c *Catalog) Series(id string) (models.Series, bool) {
	if c == nil {
		return models.Series{}, false
	}
	i, ok := c.seriesByID[id]
	if !ok {
		return models.Series{}, false
	}
	return c.series[i], true
}

// AllSeries returns every series in declared order
func (c *Catalog) AllSeries() []models.Series {
	if c == nil {
		return nil
	}
	out := make([]models.Series, len(c.series))
	copy(out, c.series)
	return out
}

// FirstSeries returns the first series in declared order
func (c *Catalog) FirstSeries() (models.Series, bool) {
	if c.Empty() {
		return models.Series{}, false
	}
	return c.series[0], true
}

// StoriesInSeries lists a series's stories ordered ascending by position
func (c *Catalog) StoriesInSeries(seriesID string) []models.Story {
	if c == nil {
		return nil
	}
	list := c.bySeries[seriesID]
	out := make([]models.Story, len(list))
	copy(out, list)
	return out
}

// FirstStory returns the lowest-position story of a series
func (c *Catalog) FirstStory(seriesID string) (models.Story, bool) {
	return c.NextUnread(seriesID, nil)
}

// NextUnread returns the lowest-position story of the series that is not in completed
func (c *Catalog) NextUnread(seriesID string, completed models.StorySet) (models.Story, bool) {
	if c == nil {
		return models.Story{}, false
	}
	for _, st := range c.bySeries[seriesID] {
		if !completed.Has(st.ID) {
			return st, true
		}
	}
	return models.Story{}, false
}

// Search returns series matching a free-text browse query. Text matches title,
// description or a theme; a number or an "a-b" range matches overlapping age ranges.
// An empty query returns all series.
func (c *Catalog) Search(query string) []models.Series {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.AllSeries()
	}

	minAge, maxAge, isAge := parseAgeQuery(query)
	needle := strings.ToLower(query)

	var out []models.Series
	for _, s := range c.AllSeries() {
		if isAge {
			if s.AgeRange.Min <= maxAge && minAge <= s.AgeRange.Max {
				out = append(out, s)
			}
			continue
		}
		if matchesText(s, needle) {
			out = append(out, s)
		}
	}
	return out
}

// EpisodeMismatches lists series whose declared episode count differs from the
// number of stories actually present. The count is editorial metadata and is not enforced.
func (c *Catalog) EpisodeMismatches() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, s := range c.series {
		if n := len(c.bySeries[s.ID]); n != s.EpisodeCount {
			out = append(out, fmt.Sprintf("%s: declared %d episodes, found %d", s.ID, s.EpisodeCount, n))
		}
	}
	return out
}

func matchesText(s models.Series, needle string) bool {
	if strings.Contains(strings.ToLower(s.Title), needle) ||
		strings.Contains(strings.ToLower(s.Description), needle) {
		return true
	}
	for _, theme := range s.Themes {
		if strings.Contains(strings.ToLower(theme), needle) {
			return true
		}
	}
	return false
}

func parseAgeQuery(q string) (int, int, bool) {
	if lo, hi, found := strings.Cut(q, "-"); found {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil || a > b {
			return 0, 0, false
		}
		return a, b, true
	}
	age, err := strconv.Atoi(q)
	if err != nil {
		return 0, 0, false
	}
	return age, age, true
}

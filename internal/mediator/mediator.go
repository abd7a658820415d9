// Package mediator decides which single story a family is offered tonight.
//
// ComputeSuggestion is a pure function of its Input: it performs no I/O, keeps no
// state and never mutates the progress store. Rules are evaluated in priority order
// and the first match wins:
//
//  1. Continue the reader's active series with its lowest-position unread story.
//  2. Otherwise offer the first story of the first series in catalog order.
//  3. Otherwise there is no suggestion.
package mediator

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"evening/internal/catalog"
	"evening/internal/models"
	"evening/internal/progress"
)

// Gate is the readiness precondition supplied by the caller
type Gate struct {
	Authenticated bool
	Onboarded     bool
}

// Open reports whether suggestions may be computed
func (g Gate) Open() bool {
	return g.Authenticated && g.Onboarded
}

// Input bundles everything a suggestion depends on
type Input struct {
	Catalog  *catalog.Catalog
	Progress progress.Store
	Reader   models.ReaderKey
	Family   *models.Family
	Gate     Gate
	Language language.Tag
}

// ComputeSuggestion returns tonight's suggestion, or nil when there is none
func ComputeSuggestion(in Input) *models.EveningSuggestion {
	if !in.Gate.Open() {
		return nil
	}

	p := printer(in.Language)
	childID, _ := in.Reader.ChildID()

	if s := continueActive(in, childID, p); s != nil {
		return s
	}

	series, ok := in.Catalog.FirstSeries()
	if !ok {
		return nil
	}
	story, ok := in.Catalog.FirstStory(series.ID)
	if !ok {
		return nil
	}

	suggestion := &models.EveningSuggestion{
		Type:     models.SuggestionFamily,
		ChildID:  childID,
		SeriesID: series.ID,
		StoryID:  story.ID,
		Title:    story.Title,
		Message:  p.Sprintf(msgFamily),
	}
	if !in.Reader.IsFamily() {
		suggestion.Type = models.SuggestionNew
		// A key for a child no longer in the family keeps the generic phrasing
		if child, found := in.Family.Child(childID); found {
			suggestion.Message = p.Sprintf(msgChildTonight, child.Name)
		}
	}
	return suggestion
}

func continueActive(in Input, childID string, p *message.Printer) *models.EveningSuggestion {
	current, ok := in.Progress.Get(in.Reader)
	if !ok {
		return nil
	}
	series, ok := in.Catalog.Series(current.SeriesID)
	if !ok {
		return nil
	}
	next, ok := in.Catalog.NextUnread(series.ID, current.CompletedStories)
	if !ok {
		return nil
	}
	return &models.EveningSuggestion{
		Type:     models.SuggestionContinue,
		ChildID:  childID,
		SeriesID: next.SeriesID,
		StoryID:  next.ID,
		Title:    next.Title,
		Message:  p.Sprintf(msgContinue, series.Title),
	}
}

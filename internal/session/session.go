// Package session holds the application state of one signed-in account: the
// catalog, the progress store, the reader selection and the readiness gate.
// Suggestions are derived from it on demand and completions are persisted
// through the storage collaborator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"evening/internal/catalog"
	"evening/internal/mediator"
	"evening/internal/models"
	"evening/internal/progress"
	"evening/internal/storage"
)

// ErrNotSignedIn is returned by operations that need a signed-in account
var ErrNotSignedIn = errors.New("not signed in")

// State is the application state of one account
type State struct {
	accountID string
	catalog   *catalog.Catalog
	db        storage.Storage
	language  language.Tag
	logger    *zap.Logger
	now       func() time.Time

	// signInMu serializes loads from storage
	signInMu sync.Mutex
	// persistMu keeps completions and their writes in one order
	persistMu sync.Mutex

	mu           sync.RWMutex
	signedIn     bool
	onboarded    bool
	family       *models.Family
	subscription models.SubscriptionStatus
	selection    models.ReaderKey

	tracker *progress.Tracker
	memo    mediator.Memo
}

// New creates the signed-out state of an account
func New(accountID string, cat *catalog.Catalog, db storage.Storage, lang language.Tag, logger *zap.Logger) *State {
	return &State{
		accountID: accountID,
		catalog:   cat,
		db:        db,
		language:  lang,
		logger:    logger.With(zap.String("account_id", accountID)),
		now:       time.Now,
		tracker:   progress.NewTracker(progress.NewStore(nil)),
	}
}

// SignIn loads family, subscription and progress from storage.
// An account without stored progress starts with an empty store.
func (s *State) SignIn(ctx context.Context) error {
	var family *models.Family
	f, err := s.db.GetFamily(ctx, s.accountID)
	switch {
	case err == nil:
		family = &f
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("failed to load family: %w", err)
	}

	sub, err := s.db.GetSubscription(ctx, s.accountID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		sub = models.TrialSubscription(s.now())
	default:
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	records, err := s.db.LoadProgress(ctx, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.signedIn = true
	s.family = family
	s.onboarded = family != nil && len(family.Children) > 0
	s.subscription = sub
	s.selection = models.FamilyReader()
	s.tracker.Reset(progress.NewStore(records))

	s.logger.Info("Signed in",
		zap.Bool("onboarded", s.onboarded),
		zap.Int("readers_with_progress", len(records)),
		zap.String("plan", string(sub.Plan)),
	)
	return nil
}

// EnsureSignedIn signs the account in unless it already is
func (s *State) EnsureSignedIn(ctx context.Context) error {
	s.signInMu.Lock()
	defer s.signInMu.Unlock()

	if s.SignedIn() {
		return nil
	}
	return s.SignIn(ctx)
}

// SignOut drops everything loaded for the account
func (s *State) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signedIn = false
	s.onboarded = false
	s.family = nil
	s.subscription = models.SubscriptionStatus{}
	s.selection = models.FamilyReader()
	s.tracker.Reset(progress.NewStore(nil))
	s.memo.Invalidate()

	s.logger.Info("Signed out")
}

// SignedIn reports whether SignIn succeeded and SignOut was not called since
func (s *State) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signedIn
}

// SelectReader sets the active reader. A key naming a child that is not in the
// family is accepted and behaves like a reader without progress.
func (s *State) SelectReader(key models.ReaderKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = key
}

// Selection returns the active reader
func (s *State) Selection() models.ReaderKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selection
}

// AddChild registers a child, creating the family on first use
func (s *State) AddChild(ctx context.Context, name string, age int) (models.Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.signedIn {
		return models.Child{}, ErrNotSignedIn
	}

	now := s.now()
	family := models.Family{ID: uuid.NewString(), CreatedAt: now}
	if s.family != nil {
		family = *s.family
		family.Children = append([]models.Child(nil), s.family.Children...)
	}

	child := models.Child{
		ID:        uuid.NewString(),
		Name:      name,
		Age:       age,
		CreatedAt: now,
	}
	family.Children = append(family.Children, child)

	if err := s.db.SaveFamily(ctx, s.accountID, family); err != nil {
		return models.Child{}, fmt.Errorf("failed to save family: %w", err)
	}
	s.family = &family

	s.logger.Info("Child added",
		zap.String("child_id", child.ID),
		zap.Int("children", len(family.Children)),
	)
	return child, nil
}

// CompleteOnboarding opens the onboarding half of the readiness gate
func (s *State) CompleteOnboarding() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded = true
}

// Gate returns the current readiness gate
func (s *State) Gate() mediator.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return mediator.Gate{Authenticated: s.signedIn, Onboarded: s.onboarded}
}

// Suggestion returns tonight's suggestion for the active reader, or nil
func (s *State) Suggestion() *models.EveningSuggestion {
	return s.SuggestionFor(s.Selection())
}

// SuggestionFor returns tonight's suggestion for a given reader without
// changing the selection
func (s *State) SuggestionFor(reader models.ReaderKey) *models.EveningSuggestion {
	s.mu.RLock()
	in := mediator.Input{
		Catalog:  s.catalog,
		Progress: s.tracker.Snapshot(),
		Reader:   reader,
		Family:   s.family,
		Gate:     mediator.Gate{Authenticated: s.signedIn, Onboarded: s.onboarded},
		Language: s.language,
	}
	s.mu.RUnlock()

	return s.memo.Suggestion(in)
}

// MarkStoryCompleted records that the active reader finished a story. The
// in-memory transition always stands; a storage failure is returned so the
// caller can tell the user their progress was not saved. Stored records are
// written in the order the transitions were applied.
func (s *State) MarkStoryCompleted(ctx context.Context, storyID string) (progress.Transition, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	signedIn := s.signedIn
	reader := s.selection
	family := s.family
	s.mu.RUnlock()

	if !signedIn {
		return progress.TransitionNone, ErrNotSignedIn
	}

	record, transition := s.tracker.Complete(s.catalog, reader, storyID)
	if !transition.Changed() {
		s.logger.Debug("Completion changed nothing",
			zap.String("story_id", storyID),
			zap.String("reader", reader.String()),
			zap.Stringer("transition", transition),
		)
		return transition, nil
	}

	s.logger.Info("Story completed",
		zap.String("story_id", storyID),
		zap.String("reader", reader.String()),
		zap.Stringer("transition", transition),
		zap.Int("completed_in_series", record.CompletedStories.Len()),
	)

	if err := s.db.SaveProgress(ctx, s.accountID, reader, record); err != nil {
		return transition, fmt.Errorf("failed to save progress: %w", err)
	}
	if err := s.db.CreateEvent(ctx, s.accountID, s.event(reader, family, storyID, record.LastReadAt)); err != nil {
		return transition, fmt.Errorf("failed to record reading event: %w", err)
	}
	return transition, nil
}

func (s *State) event(reader models.ReaderKey, family *models.Family, storyID string, at time.Time) models.ReadingEvent {
	story, _ := s.catalog.Story(storyID)
	series, _ := s.catalog.Series(story.SeriesID)

	event := models.ReadingEvent{
		Date:        at,
		Reader:      reader,
		SeriesID:    series.ID,
		SeriesTitle: series.Title,
		StoryID:     story.ID,
		StoryTitle:  story.Title,
	}
	if id, ok := reader.ChildID(); ok {
		if child, found := family.Child(id); found {
			event.ChildName = child.Name
		}
	}
	return event
}

// Progress returns the current progress snapshot
func (s *State) Progress() progress.Store {
	return s.tracker.Snapshot()
}

// Family returns a copy of the family, or nil before the first child is added
func (s *State) Family() *models.Family {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.family == nil {
		return nil
	}
	f := *s.family
	f.Children = append([]models.Child(nil), s.family.Children...)
	f.Members = append([]models.FamilyMember(nil), s.family.Members...)
	return &f
}

// Subscription returns the plan shown to the user
func (s *State) Subscription() models.SubscriptionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subscription
}

// Catalog returns the catalog the state was built with
func (s *State) Catalog() *catalog.Catalog {
	return s.catalog
}

// Memories returns the most recent reading events, newest first
func (s *State) Memories(ctx context.Context, limit int) ([]models.ReadingEvent, error) {
	if !s.SignedIn() {
		return nil, ErrNotSignedIn
	}
	events, err := s.db.GetLastEvents(ctx, s.accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reading events: %w", err)
	}
	return events, nil
}

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"evening/internal/catalog"
	"evening/internal/mediator"
	"evening/internal/models"
	"evening/internal/progress"
	"evening/internal/storage/stubs"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(
		[]models.Series{{ID: "S1", Title: "Night Bear"}, {ID: "S2", Title: "Kindergarten"}},
		[]models.Story{
			{ID: "s1-1", SeriesID: "S1", Title: "One", Position: 1},
			{ID: "s1-2", SeriesID: "S1", Title: "Two", Position: 2},
			{ID: "s2-1", SeriesID: "S2", Title: "Day One", Position: 1},
		})
	require.NoError(t, err)
	return c
}

func newState(t *testing.T, db *stubs.MockDB) *State {
	t.Helper()
	return New("acc-1", testCatalog(t), db, language.English, zap.NewNop())
}

// failingDB fails every progress write
type failingDB struct {
	*stubs.MockDB
}

func (f failingDB) SaveProgress(ctx context.Context, accountID string, reader models.ReaderKey, p models.ReadingProgress) error {
	return errors.New("disk full")
}

// slowFirstSaveDB holds the first progress write back until a second write
// starts or a timeout passes
type slowFirstSaveDB struct {
	*stubs.MockDB
	saves  atomic.Int32
	second chan struct{}
}

func (d *slowFirstSaveDB) SaveProgress(ctx context.Context, accountID string, reader models.ReaderKey, p models.ReadingProgress) error {
	if d.saves.Add(1) == 1 {
		select {
		case <-d.second:
		case <-time.After(100 * time.Millisecond):
		}
	} else {
		close(d.second)
	}
	return d.MockDB.SaveProgress(ctx, accountID, reader, p)
}

func TestState_SignedOutHasNoSuggestion(t *testing.T) {
	s := newState(t, stubs.NewMockDB())

	assert.False(t, s.SignedIn())
	assert.Nil(t, s.Suggestion())

	_, err := s.MarkStoryCompleted(context.Background(), "s1-1")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = s.AddChild(context.Background(), "Noa", 5)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestState_SignInNewAccount(t *testing.T) {
	ctx := context.Background()
	s := newState(t, stubs.NewMockDB())

	require.NoError(t, s.SignIn(ctx))
	assert.True(t, s.SignedIn())
	assert.Equal(t, mediator.Gate{Authenticated: true}, s.Gate())
	assert.Nil(t, s.Family())
	assert.Equal(t, 0, s.Progress().Len(), "progress starts as an empty mapping")
	assert.True(t, s.Selection().IsFamily())
	assert.Equal(t, models.PlanTrial, s.Subscription().Plan)
	assert.Equal(t, 2, s.Subscription().MaxChildren)

	// Not onboarded yet
	assert.Nil(t, s.Suggestion())
}

func TestState_OnboardingFlow(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	s := newState(t, db)
	require.NoError(t, s.SignIn(ctx))

	child, err := s.AddChild(ctx, "Noa", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, child.ID)
	assert.Nil(t, s.Suggestion(), "adding a child does not finish onboarding by itself")

	s.CompleteOnboarding()
	got := s.Suggestion()
	require.NotNil(t, got)
	assert.Equal(t, models.SuggestionFamily, got.Type)
	assert.Equal(t, "s1-1", got.StoryID)

	s.SelectReader(models.ChildReader(child.ID))
	got = s.Suggestion()
	require.NotNil(t, got)
	assert.Equal(t, models.SuggestionNew, got.Type)
	assert.Equal(t, "Tonight's story for Noa", got.Message)

	// Family was persisted
	stored, err := db.GetFamily(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, stored.Children, 1)
	assert.Equal(t, "Noa", stored.Children[0].Name)
}

func TestState_SignInRestoresStoredState(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	require.NoError(t, db.SaveFamily(ctx, "acc-1", models.Family{ID: "f", Children: []models.Child{{ID: "noa", Name: "Noa"}}}))
	require.NoError(t, db.SaveProgress(ctx, "acc-1", models.ChildReader("noa"), models.ReadingProgress{
		SeriesID:         "S2",
		CompletedStories: models.StorySet{},
	}))
	db.SetSubscription("acc-1", models.SubscriptionStatus{Plan: models.PlanBasic, MaxChildren: 3})

	s := newState(t, db)
	require.NoError(t, s.SignIn(ctx))

	assert.True(t, s.Gate().Open(), "a family with children counts as onboarded")
	assert.Equal(t, models.PlanBasic, s.Subscription().Plan)

	s.SelectReader(models.ChildReader("noa"))
	got := s.Suggestion()
	require.NotNil(t, got)
	assert.Equal(t, models.SuggestionContinue, got.Type)
	assert.Equal(t, "s2-1", got.StoryID)
}

func TestState_MarkStoryCompletedPersists(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	require.NoError(t, db.SaveFamily(ctx, "acc-1", models.Family{ID: "f", Children: []models.Child{{ID: "noa", Name: "Noa"}}}))

	s := newState(t, db)
	require.NoError(t, s.SignIn(ctx))
	s.SelectReader(models.ChildReader("noa"))

	transition, err := s.MarkStoryCompleted(ctx, "s1-1")
	require.NoError(t, err)
	assert.Equal(t, progress.TransitionStarted, transition)

	got := s.Suggestion()
	require.NotNil(t, got)
	assert.Equal(t, models.SuggestionContinue, got.Type)
	assert.Equal(t, "s1-2", got.StoryID)

	// Second completion of the same story is a no-op and writes nothing
	transition, err = s.MarkStoryCompleted(ctx, "s1-1")
	require.NoError(t, err)
	assert.Equal(t, progress.TransitionDuplicate, transition)

	// Unknown stories are ignored
	transition, err = s.MarkStoryCompleted(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, progress.TransitionNone, transition)

	stored, err := db.LoadProgress(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.NewStorySet("s1-1"), stored[models.ChildReader("noa")].CompletedStories)

	events, err := s.Memories(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Noa", events[0].ChildName)
	assert.Equal(t, "Night Bear", events[0].SeriesTitle)
	assert.Equal(t, "One", events[0].StoryTitle)
	assert.Equal(t, models.ChildReader("noa"), events[0].Reader)
}

func TestState_MarkStoryCompletedStorageFailure(t *testing.T) {
	ctx := context.Background()
	s := New("acc-1", testCatalog(t), failingDB{stubs.NewMockDB()}, language.English, zap.NewNop())
	require.NoError(t, s.SignIn(ctx))

	transition, err := s.MarkStoryCompleted(ctx, "s1-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, progress.TransitionStarted, transition)

	// The in-memory transition stands
	p, ok := s.Progress().Get(models.FamilyReader())
	require.True(t, ok)
	assert.True(t, p.CompletedStories.Has("s1-1"))
}

func TestState_SignOutClearsEverything(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	s := newState(t, db)
	require.NoError(t, s.SignIn(ctx))
	_, err := s.AddChild(ctx, "Noa", 5)
	require.NoError(t, err)
	s.CompleteOnboarding()
	_, err = s.MarkStoryCompleted(ctx, "s1-1")
	require.NoError(t, err)
	require.NotNil(t, s.Suggestion())

	s.SignOut()

	assert.False(t, s.SignedIn())
	assert.Equal(t, mediator.Gate{}, s.Gate())
	assert.Nil(t, s.Family())
	assert.Equal(t, 0, s.Progress().Len())
	assert.True(t, s.Selection().IsFamily())
	assert.Nil(t, s.Suggestion())

	// Signing back in restores persisted state
	require.NoError(t, s.SignIn(ctx))
	assert.Equal(t, 1, s.Progress().Len())
	assert.True(t, s.Gate().Open())
}

func TestState_ConcurrentCompletionsSerialize(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	s := newState(t, db)
	require.NoError(t, s.SignIn(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "s1-1"
			if i%2 == 1 {
				id = "s1-2"
			}
			_, _ = s.MarkStoryCompleted(ctx, id)
		}(i)
	}
	wg.Wait()

	p, ok := s.Progress().Get(models.FamilyReader())
	require.True(t, ok)
	assert.Equal(t, models.NewStorySet("s1-1", "s1-2"), p.CompletedStories)

	events, err := s.Memories(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, events, 2, "only effective completions are logged")

	stored, err := db.LoadProgress(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.NewStorySet("s1-1", "s1-2"), stored[models.FamilyReader()].CompletedStories)
}

func TestState_CompletionsPersistInOrder(t *testing.T) {
	ctx := context.Background()
	db := &slowFirstSaveDB{MockDB: stubs.NewMockDB(), second: make(chan struct{})}
	s := New("acc-1", testCatalog(t), db, language.English, zap.NewNop())
	require.NoError(t, s.SignIn(ctx))

	first := make(chan error, 1)
	go func() {
		_, err := s.MarkStoryCompleted(ctx, "s1-1")
		first <- err
	}()

	// Let the first completion reach its write before the second starts
	require.Eventually(t, func() bool { return db.saves.Load() == 1 }, time.Second, time.Millisecond)
	_, err := s.MarkStoryCompleted(ctx, "s1-2")
	require.NoError(t, err)
	require.NoError(t, <-first)

	s.SignOut()
	require.NoError(t, s.SignIn(ctx))

	p, ok := s.Progress().Get(models.FamilyReader())
	require.True(t, ok)
	assert.Equal(t, models.NewStorySet("s1-1", "s1-2"), p.CompletedStories)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	db := stubs.NewMockDB()
	r := NewRegistry(testCatalog(t), db, language.English, zap.NewNop())

	a, err := r.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, a.SignedIn())

	again, err := r.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.Same(t, a, again)

	b, err := r.Get(ctx, "acc-2")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	r.SignOut("acc-1")
	assert.False(t, a.SignedIn())

	fresh, err := r.Get(ctx, "acc-1")
	require.NoError(t, err)
	assert.NotSame(t, a, fresh)
	assert.True(t, fresh.SignedIn())
}

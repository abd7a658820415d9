package progress

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evening/internal/catalog"
	"evening/internal/models"
)

func TestTracker_Complete(t *testing.T) {
	cat := testCatalog(t)
	tracker := NewTracker(Store{})
	tracker.now = func() time.Time { return t0 }

	record, tr := tracker.Complete(cat, models.FamilyReader(), "A")
	assert.Equal(t, TransitionStarted, tr)
	assert.Equal(t, "S1", record.SeriesID)

	record, tr = tracker.Complete(cat, models.FamilyReader(), "A")
	assert.Equal(t, TransitionDuplicate, tr)
	assert.Equal(t, models.StorySet{"A"}, record.CompletedStories)

	_, tr = tracker.Complete(cat, models.FamilyReader(), "nope")
	assert.Equal(t, TransitionNone, tr)

	tracker.Reset(Store{})
	assert.Equal(t, 0, tracker.Snapshot().Len())
}

func TestTracker_ConcurrentCompletionsSerialize(t *testing.T) {
	const stories = 50

	var list []models.Story
	for i := 1; i <= stories; i++ {
		list = append(list, models.Story{ID: fmt.Sprintf("st-%02d", i), SeriesID: "S1", Position: i})
	}
	cat, err := catalog.New([]models.Series{{ID: "S1"}}, list)
	require.NoError(t, err)

	tracker := NewTracker(Store{})
	key := models.ChildReader("c1")

	var wg sync.WaitGroup
	for _, st := range list {
		// Every story is completed twice concurrently
		for range 2 {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				tracker.Complete(cat, key, id)
			}(st.ID)
		}
	}
	wg.Wait()

	p, ok := tracker.Snapshot().Get(key)
	require.True(t, ok)
	assert.Equal(t, stories, p.CompletedStories.Len(), "no completion may be lost or duplicated")
}

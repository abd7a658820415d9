package mediator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evening/internal/models"
	"evening/internal/progress"
)

func TestMemo_ReusesResultForSameInputs(t *testing.T) {
	cat := twoSeries(t)
	in := Input{Catalog: cat, Progress: progress.NewStore(nil), Reader: models.FamilyReader(), Family: family, Gate: open}

	var memo Memo
	first := memo.Suggestion(in)
	second := memo.Suggestion(in)

	require.NotNil(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, memo.misses)

	// Callers get copies
	first.Title = "changed"
	assert.Equal(t, "One", memo.Suggestion(in).Title)
}

func TestMemo_RecomputesWhenInputsChange(t *testing.T) {
	cat := twoSeries(t)
	in := Input{Catalog: cat, Reader: models.FamilyReader(), Family: family, Gate: open}

	var memo Memo
	assert.Equal(t, "s1-1", memo.Suggestion(in).StoryID)

	in.Progress, _ = progress.MarkStoryCompleted(in.Progress, cat, in.Reader, "s1-1", now)
	assert.Equal(t, "s1-2", memo.Suggestion(in).StoryID)

	in.Reader = models.ChildReader("noa")
	got := memo.Suggestion(in)
	assert.Equal(t, models.SuggestionNew, got.Type)

	in.Family = &models.Family{Children: []models.Child{{ID: "noa", Name: "Noa B."}}}
	assert.Equal(t, "Tonight's story for Noa B.", memo.Suggestion(in).Message)

	in.Gate = Gate{}
	assert.Nil(t, memo.Suggestion(in))
	assert.Equal(t, 5, memo.misses)
}

func TestMemo_MatchesComputeSuggestion(t *testing.T) {
	cat := twoSeries(t)
	var memo Memo

	inputs := []Input{
		{Catalog: cat, Gate: open},
		{Catalog: cat, Gate: Gate{Authenticated: true}},
		{Catalog: cat, Reader: models.ChildReader("itai"), Family: family, Gate: open},
		{Catalog: cat, Progress: storeWith(models.FamilyReader(), models.ReadingProgress{SeriesID: "S2"}), Gate: open},
	}
	for _, in := range inputs {
		assert.Equal(t, ComputeSuggestion(in), memo.Suggestion(in))
	}

	memo.Invalidate()
	assert.Equal(t, ComputeSuggestion(inputs[0]), memo.Suggestion(inputs[0]))
}

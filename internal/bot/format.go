package bot

import (
	"fmt"
	"strings"

	"evening/internal/catalog"
	"evening/internal/models"
)

// readerName is the display name of a reader key
func readerName(family *models.Family, key models.ReaderKey) string {
	id, ok := key.ChildID()
	if !ok {
		return "The whole family"
	}
	if child, found := family.Child(id); found {
		return child.Name
	}
	return "A former reader"
}

func formatSuggestion(s *models.EveningSuggestion, family *models.Family, reader models.ReaderKey) string {
	icon := "🌙"
	switch s.Type {
	case models.SuggestionContinue:
		icon = "📖"
	case models.SuggestionFamily:
		icon = "👨‍👩‍👧"
	}
	return fmt.Sprintf("%s %s\n\n%s\n\nReader: %s", icon, s.Message, s.Title, readerName(family, reader))
}

func formatProgress(cat *catalog.Catalog, name string, p models.ReadingProgress) string {
	series, ok := cat.Series(p.SeriesID)
	if !ok {
		return fmt.Sprintf("• %s: a series that is no longer available", name)
	}
	total := len(cat.StoriesInSeries(p.SeriesID))

	line := fmt.Sprintf("• %s: %s, %d/%d stories", name, series.Title, p.CompletedStories.Len(), total)
	if last, ok := cat.Story(p.LastStoryID); ok {
		line += fmt.Sprintf(", last “%s”", last.Title)
	}
	if !p.LastReadAt.IsZero() {
		line += " on " + p.LastReadAt.Format("2006-01-02")
	}
	return line
}

func formatEvent(e models.ReadingEvent) string {
	who := e.ChildName
	if who == "" {
		who = "Family"
		if !e.Reader.IsFamily() {
			who = "A former reader"
		}
	}
	return fmt.Sprintf("%s - %s: “%s” (%s)", e.Date.Format("2006-01-02"), who, e.StoryTitle, e.SeriesTitle)
}

func formatSeries(s models.Series, stories int) string {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("📚 %s\n\n", s.Title))
	if s.Description != "" {
		text.WriteString(s.Description + "\n\n")
	}
	text.WriteString(fmt.Sprintf("Ages %d-%d", s.AgeRange.Min, s.AgeRange.Max))
	if stories > 0 {
		text.WriteString(fmt.Sprintf(" · %d stories", stories))
	}
	if len(s.Themes) > 0 {
		text.WriteString("\nThemes: " + strings.Join(s.Themes, ", "))
	}
	if len(s.Challenges) > 0 {
		text.WriteString("\nHelps with: " + strings.Join(s.Challenges, ", "))
	}
	return text.String()
}

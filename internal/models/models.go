package models

import "time"

// AgeRange is the inclusive age band a series is written for
type AgeRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether age falls inside the range
func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

// Series represents an ordered group of stories in the catalog
type Series struct {
	ID           string   `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	Description  string   `yaml:"description" json:"description"`
	CoverURL     string   `yaml:"cover_url" json:"cover_url,omitempty"`
	AgeRange     AgeRange `yaml:"age_range" json:"age_range"`
	Themes       []string `yaml:"themes" json:"themes"`
	Challenges   []string `yaml:"challenges" json:"challenges"`
	EpisodeCount int      `yaml:"episode_count" json:"episode_count"`
}

// ContentType is the kind of a single story element
type ContentType string

const (
	ContentText         ContentType = "text"
	ContentIllustration ContentType = "illustration"
)

// StoryContent is one element of a story: literal text or a media reference
type StoryContent struct {
	Type    ContentType `yaml:"type" json:"type"`
	Content string      `yaml:"content" json:"content"`
}

// Story represents a single episode of a series
type Story struct {
	ID                   string         `yaml:"id" json:"id"`
	SeriesID             string         `yaml:"series_id" json:"series_id"`
	Title                string         `yaml:"title" json:"title"`
	CoverURL             string         `yaml:"cover_url" json:"cover_url,omitempty"`
	ParentContext        string         `yaml:"parent_context" json:"parent_context,omitempty"`
	Content              []StoryContent `yaml:"content" json:"content"`
	ConversationStarters []string       `yaml:"conversation_starters" json:"conversation_starters,omitempty"`
	Position             int            `yaml:"position" json:"position"`
}

// ReadingProgress tracks the series a reader is currently working through
type ReadingProgress struct {
	SeriesID         string    `json:"series_id"`
	LastStoryID      string    `json:"last_story_id"`
	CompletedStories StorySet  `json:"completed_stories"`
	StartedAt        time.Time `json:"started_at"`
	LastReadAt       time.Time `json:"last_read_at"`
}

// SuggestionType tells the UI how to frame an evening suggestion
type SuggestionType string

const (
	SuggestionContinue SuggestionType = "continue"
	SuggestionNew      SuggestionType = "new"
	SuggestionFamily   SuggestionType = "family"
)

// EveningSuggestion is the single story proposed for tonight. It is derived, never stored.
type EveningSuggestion struct {
	Type     SuggestionType `json:"type"`
	ChildID  string         `json:"child_id,omitempty"`
	SeriesID string         `json:"series_id"`
	StoryID  string         `json:"story_id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
}

// Child represents a registered child in a family
type Child struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberRole is the relation of a non-child family member
type MemberRole string

const (
	RoleParent      MemberRole = "parent"
	RoleGrandparent MemberRole = "grandparent"
	RoleSibling     MemberRole = "sibling"
	RoleOther       MemberRole = "other"
)

// FamilyMember represents an adult or sibling who takes part in reading
type FamilyMember struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      MemberRole `json:"role"`
	AvatarURL string     `json:"avatar_url,omitempty"`
}

// Family groups the children and members of one account
type Family struct {
	ID          string         `json:"id"`
	ParentEmail string         `json:"parent_email"`
	Children    []Child        `json:"children"`
	Members     []FamilyMember `json:"members"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Child returns the child with the given id
func (f *Family) Child(id string) (Child, bool) {
	if f == nil {
		return Child{}, false
	}
	for _, c := range f.Children {
		if c.ID == id {
			return c, true
		}
	}
	return Child{}, false
}

// Plan is a subscription tier
type Plan string

const (
	PlanTrial   Plan = "trial"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// SubscriptionStatus holds plan limits. They are shown to the user, not enforced.
type SubscriptionStatus struct {
	Plan             Plan      `json:"plan"`
	ExpiresAt        time.Time `json:"expires_at"`
	CanCreateStories bool      `json:"can_create_stories"`
	MaxChildren      int       `json:"max_children"`
	MaxFamilyMembers int       `json:"max_family_members"`
}

// TrialSubscription returns the default plan given to accounts without a stored subscription
func TrialSubscription(now time.Time) SubscriptionStatus {
	return SubscriptionStatus{
		Plan:             PlanTrial,
		ExpiresAt:        now.AddDate(0, 0, 7),
		CanCreateStories: false,
		MaxChildren:      2,
		MaxFamilyMembers: 4,
	}
}

// CanAddChild reports whether the family is still under the plan's child limit
func (s SubscriptionStatus) CanAddChild(family *Family) bool {
	if family == nil {
		return s.MaxChildren > 0
	}
	return len(family.Children) < s.MaxChildren
}

// ReadingEvent represents a finished story, kept as a shared family memory
type ReadingEvent struct {
	Date        time.Time `json:"date"`
	Reader      ReaderKey `json:"reader"`
	ChildName   string    `json:"child_name,omitempty"`
	SeriesID    string    `json:"series_id"`
	SeriesTitle string    `json:"series_title"`
	StoryID     string    `json:"story_id"`
	StoryTitle  string    `json:"story_title"`
}

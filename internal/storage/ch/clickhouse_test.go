package ch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"evening/internal/models"
	"evening/internal/storage"
	"evening/migrations"
)

// setupTestDB creates a test ClickHouse instance using testcontainers
func setupTestDB(t *testing.T) (*ClickHouseDB, func()) {
	if testing.Short() {
		t.Skip("skipping ClickHouse integration test in short mode")
	}
	ctx := context.Background()

	// Start ClickHouse container
	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	// Get connection details
	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	// Apply the embedded goose migrations
	sqlDB := OpenSQL(Options(host, port.Int(), "default", "default", "", false))
	require.NoError(t, migrations.Up(sqlDB), "Failed to run migrations")
	require.NoError(t, sqlDB.Close())

	// Create database connection
	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	// Cleanup function
	cleanup := func() {
		db.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return db, cleanup
}

func TestClickHouseDB_Family(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.GetFamily(ctx, "acc-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	created := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	family := models.Family{
		ID:          "fam-1",
		ParentEmail: "parent@example.com",
		CreatedAt:   created,
		Children: []models.Child{
			{ID: "c1", Name: "Noa", Age: 5, CreatedAt: created},
			{ID: "c2", Name: "Itai", Age: 7, CreatedAt: created},
		},
		Members: []models.FamilyMember{{ID: "m1", Name: "Savta", Role: models.RoleGrandparent}},
	}
	require.NoError(t, db.SaveFamily(ctx, "acc-1", family))

	got, err := db.GetFamily(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "fam-1", got.ID)
	assert.Equal(t, "parent@example.com", got.ParentEmail)
	require.Len(t, got.Children, 2)
	assert.Equal(t, "Noa", got.Children[0].Name)
	assert.Equal(t, 7, got.Children[1].Age)
	require.Len(t, got.Members, 1)
	assert.Equal(t, models.RoleGrandparent, got.Members[0].Role)

	// A new version replaces children instead of adding to them
	family.Children = family.Children[:1]
	require.NoError(t, db.SaveFamily(ctx, "acc-1", family))

	got, err = db.GetFamily(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, got.Children, 1)
}

func TestClickHouseDB_Subscription(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := db.GetSubscription(ctx, "acc-1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	// Plans are written by the billing side, directly to the table
	err = db.conn.Exec(ctx, `INSERT INTO subscriptions (account_id, plan, expires_at, can_create_stories, max_children, max_family_members, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "acc-1", "premium", time.Now().Add(24*time.Hour), true, uint16(5), uint16(8), time.Now())
	require.NoError(t, err)

	sub, err := db.GetSubscription(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPremium, sub.Plan)
	assert.True(t, sub.CanCreateStories)
	assert.Equal(t, 5, sub.MaxChildren)
	assert.Equal(t, 8, sub.MaxFamilyMembers)
}

func TestClickHouseDB_Progress(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	records, err := db.LoadProgress(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, records)

	started := time.Date(2024, 1, 20, 19, 0, 0, 0, time.UTC)
	p := models.ReadingProgress{
		SeriesID:         "series-1",
		LastStoryID:      "story-1-1",
		CompletedStories: models.NewStorySet("story-1-1"),
		StartedAt:        started,
		LastReadAt:       started,
	}
	require.NoError(t, db.SaveProgress(ctx, "acc-1", models.FamilyReader(), p))
	require.NoError(t, db.SaveProgress(ctx, "acc-1", models.ChildReader("c1"), models.ReadingProgress{SeriesID: "series-2"}))

	// Replace the family record with a newer version
	p.CompletedStories = p.CompletedStories.With("story-1-2")
	p.LastStoryID = "story-1-2"
	p.LastReadAt = started.Add(24 * time.Hour)
	require.NoError(t, db.SaveProgress(ctx, "acc-1", models.FamilyReader(), p))

	records, err = db.LoadProgress(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	family := records[models.FamilyReader()]
	assert.Equal(t, "story-1-2", family.LastStoryID)
	assert.Equal(t, models.NewStorySet("story-1-1", "story-1-2"), family.CompletedStories)
	assert.True(t, family.StartedAt.Equal(started))
	assert.Equal(t, "series-2", records[models.ChildReader("c1")].SeriesID)

	// Other accounts see nothing
	records, err = db.LoadProgress(ctx, "acc-2")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClickHouseDB_GetLastEvents(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	for i := 0; i < 15; i++ {
		err := db.CreateEvent(ctx, "acc-1", models.ReadingEvent{
			Date:       now.AddDate(0, 0, -i),
			Reader:     models.ChildReader("c1"),
			ChildName:  "Noa",
			SeriesID:   "series-1",
			StoryID:    "story-1-1",
			StoryTitle: "The Bear Who Can't Sleep",
		})
		require.NoError(t, err)
	}

	events, err := db.GetLastEvents(ctx, "acc-1", 10)
	require.NoError(t, err)
	assert.Len(t, events, 10)

	// Should be ordered by date descending
	for i := 0; i < len(events)-1; i++ {
		assert.True(t, events[i].Date.After(events[i+1].Date) || events[i].Date.Equal(events[i+1].Date),
			"Events should be ordered by date descending")
	}
	assert.Equal(t, models.ChildReader("c1"), events[0].Reader)
	assert.Equal(t, "Noa", events[0].ChildName)
}

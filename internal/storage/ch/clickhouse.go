package ch

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"evening/internal/models"
	"evening/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

type ClickHouseDB struct {
	conn clickhouse.Conn
	// now is the source of row versions for ReplacingMergeTree tables
	now func() time.Time
}

var _ storage.Storage = (*ClickHouseDB)(nil)

// Options builds the connection options shared by the native connection and database/sql
func Options(host string, port int, database, user, password string, useTLS bool) *clickhouse.Options {
	options := &clickhouse.Options{
		Addr:     []string{fmt.Sprintf("%s:%d", host, port)},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}
	return options
}

// OpenSQL opens a database/sql handle, used by goose migrations
func OpenSQL(options *clickhouse.Options) *sql.DB {
	return clickhouse.OpenDB(options)
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(Options(host, port, database, user, password, useTLS))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	return nil
}

func (db *ClickHouseDB) version() uint64 {
	return uint64(db.now().UnixNano())
}

// GetFamily returns the latest stored family of an account
func (db *ClickHouseDB) GetFamily(ctx context.Context, accountID string) (models.Family, error) {
	var (
		family  models.Family
		version uint64
	)
	row := db.conn.QueryRow(ctx, `SELECT family_id, parent_email, created_at, version FROM families FINAL WHERE account_id = ?`, accountID)
	if err := row.Scan(&family.ID, &family.ParentEmail, &family.CreatedAt, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Family{}, storage.ErrNotFound
		}
		return models.Family{}, fmt.Errorf("failed to get family: %w", err)
	}

	children, err := db.listChildren(ctx, accountID, version)
	if err != nil {
		return models.Family{}, err
	}
	family.Children = children

	members, err := db.listMembers(ctx, accountID, version)
	if err != nil {
		return models.Family{}, err
	}
	family.Members = members

	return family, nil
}

func (db *ClickHouseDB) listChildren(ctx context.Context, accountID string, version uint64) ([]models.Child, error) {
	rows, err := db.conn.Query(ctx, `SELECT child_id, name, age, avatar_url, created_at FROM family_children
		WHERE account_id = ? AND version = ? ORDER BY position`, accountID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []models.Child
	for rows.Next() {
		var (
			child models.Child
			age   uint8
		)
		if err := rows.Scan(&child.ID, &child.Name, &age, &child.AvatarURL, &child.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		child.Age = int(age)
		children = append(children, child)
	}
	return children, rows.Err()
}

func (db *ClickHouseDB) listMembers(ctx context.Context, accountID string, version uint64) ([]models.FamilyMember, error) {
	rows, err := db.conn.Query(ctx, `SELECT member_id, name, role, avatar_url FROM family_members
		WHERE account_id = ? AND version = ? ORDER BY position`, accountID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		var (
			member models.FamilyMember
			role   string
		)
		if err := rows.Scan(&member.ID, &member.Name, &role, &member.AvatarURL); err != nil {
			return nil, fmt.Errorf("failed to scan family member: %w", err)
		}
		member.Role = models.MemberRole(role)
		members = append(members, member)
	}
	return members, rows.Err()
}

// SaveFamily writes a new version of the family. Children and members are
// written first so a reader never sees a family row without its children.
func (db *ClickHouseDB) SaveFamily(ctx context.Context, accountID string, family models.Family) error {
	version := db.version()

	if len(family.Children) > 0 {
		batch, err := db.conn.PrepareBatch(ctx, `INSERT INTO family_children (account_id, version, position, child_id, name, age, avatar_url, created_at)`)
		if err != nil {
			return fmt.Errorf("failed to prepare children batch: %w", err)
		}
		for i, child := range family.Children {
			if err := batch.Append(accountID, version, uint16(i), child.ID, child.Name, uint8(child.Age), child.AvatarURL, child.CreatedAt); err != nil {
				return fmt.Errorf("failed to append child: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to save children: %w", err)
		}
	}

	if len(family.Members) > 0 {
		batch, err := db.conn.PrepareBatch(ctx, `INSERT INTO family_members (account_id, version, position, member_id, name, role, avatar_url)`)
		if err != nil {
			return fmt.Errorf("failed to prepare members batch: %w", err)
		}
		for i, member := range family.Members {
			if err := batch.Append(accountID, version, uint16(i), member.ID, member.Name, string(member.Role), member.AvatarURL); err != nil {
				return fmt.Errorf("failed to append family member: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to save family members: %w", err)
		}
	}

	err := db.conn.Exec(ctx, `INSERT INTO families (account_id, family_id, parent_email, created_at, version) VALUES (?, ?, ?, ?, ?)`,
		accountID, family.ID, family.ParentEmail, family.CreatedAt, version)
	if err != nil {
		return fmt.Errorf("failed to save family: %w", err)
	}
	return nil
}

// GetSubscription returns the current plan of an account
func (db *ClickHouseDB) GetSubscription(ctx context.Context, accountID string) (models.SubscriptionStatus, error) {
	var (
		sub                     models.SubscriptionStatus
		plan                    string
		maxChildren, maxMembers uint16
	)
	row := db.conn.QueryRow(ctx, `SELECT plan, expires_at, can_create_stories, max_children, max_family_members
		FROM subscriptions FINAL WHERE account_id = ?`, accountID)
	if err := row.Scan(&plan, &sub.ExpiresAt, &sub.CanCreateStories, &maxChildren, &maxMembers); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.SubscriptionStatus{}, storage.ErrNotFound
		}
		return models.SubscriptionStatus{}, fmt.Errorf("failed to get subscription: %w", err)
	}
	sub.Plan = models.Plan(plan)
	sub.MaxChildren = int(maxChildren)
	sub.MaxFamilyMembers = int(maxMembers)
	return sub, nil
}

// LoadProgress returns every reader's latest record for an account
func (db *ClickHouseDB) LoadProgress(ctx context.Context, accountID string) (map[models.ReaderKey]models.ReadingProgress, error) {
	rows, err := db.conn.Query(ctx, `SELECT reader, series_id, last_story_id, completed_stories, started_at, last_read_at
		FROM reading_progress FINAL WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	defer rows.Close()

	records := make(map[models.ReaderKey]models.ReadingProgress)
	for rows.Next() {
		var (
			reader    string
			completed []string
			p         models.ReadingProgress
		)
		if err := rows.Scan(&reader, &p.SeriesID, &p.LastStoryID, &completed, &p.StartedAt, &p.LastReadAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		key, err := models.ParseReaderKey(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reader of stored progress: %w", err)
		}
		p.CompletedStories = models.NewStorySet(completed...)
		records[key] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return records, nil
}

// SaveProgress writes a new version of one reader's record
func (db *ClickHouseDB) SaveProgress(ctx context.Context, accountID string, reader models.ReaderKey, progress models.ReadingProgress) error {
	completed := []string(progress.CompletedStories)
	if completed == nil {
		completed = []string{}
	}
	err := db.conn.Exec(ctx, `INSERT INTO reading_progress
		(account_id, reader, series_id, last_story_id, completed_stories, started_at, last_read_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, reader.String(), progress.SeriesID, progress.LastStoryID, completed,
		progress.StartedAt, progress.LastReadAt, db.version())
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// CreateEvent creates a new reading event
func (db *ClickHouseDB) CreateEvent(ctx context.Context, accountID string, event models.ReadingEvent) error {
	err := db.conn.Exec(ctx, `INSERT INTO reading_events
		(account_id, date, reader, child_name, series_id, series_title, story_id, story_title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		accountID, event.Date, event.Reader.String(), event.ChildName,
		event.SeriesID, event.SeriesTitle, event.StoryID, event.StoryTitle)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetLastEvents returns the last N events of an account
func (db *ClickHouseDB) GetLastEvents(ctx context.Context, accountID string, limit int) ([]models.ReadingEvent, error) {
	rows, err := db.conn.Query(ctx, `SELECT date, reader, child_name, series_id, series_title, story_id, story_title
		FROM reading_events WHERE account_id = ? ORDER BY date DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get last events: %w", err)
	}
	defer rows.Close()

	var events []models.ReadingEvent
	for rows.Next() {
		var (
			event  models.ReadingEvent
			reader string
		)
		if err := rows.Scan(&event.Date, &reader, &event.ChildName, &event.SeriesID, &event.SeriesTitle, &event.StoryID, &event.StoryTitle); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if event.Reader, err = models.ParseReaderKey(reader); err != nil {
			return nil, fmt.Errorf("failed to parse reader of event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

package storage

import (
	"context"
	"errors"

	"evening/internal/models"
)

// ErrNotFound is returned when an account has no stored record of the requested kind
var ErrNotFound = errors.New("not found")

// Storage defines the interface for data storage operations.
// Every record is scoped by the account id of the signed-in parent.
type Storage interface {
	// Family operations

	// GetFamily returns ErrNotFound for accounts that have not started onboarding
	GetFamily(ctx context.Context, accountID string) (models.Family, error)
	SaveFamily(ctx context.Context, accountID string, family models.Family) error

	// GetSubscription returns ErrNotFound when the account has no stored plan
	GetSubscription(ctx context.Context, accountID string) (models.SubscriptionStatus, error)

	// Progress operations

	// LoadProgress returns every reader's record; an account without progress gets an empty map
	LoadProgress(ctx context.Context, accountID string) (map[models.ReaderKey]models.ReadingProgress, error)
	// SaveProgress replaces the record of one reader
	SaveProgress(ctx context.Context, accountID string, reader models.ReaderKey, progress models.ReadingProgress) error

	// Event operations
	CreateEvent(ctx context.Context, accountID string, event models.ReadingEvent) error
	GetLastEvents(ctx context.Context, accountID string, limit int) ([]models.ReadingEvent, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

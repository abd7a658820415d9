package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"

	"evening/internal/catalog"
	"evening/internal/storage"
)

// Registry owns the state of every account, signing accounts in on first use
type Registry struct {
	catalog  *catalog.Catalog
	db       storage.Storage
	language language.Tag
	logger   *zap.Logger

	mu     sync.Mutex
	states map[string]*State
}

// NewRegistry creates an empty registry
func NewRegistry(cat *catalog.Catalog, db storage.Storage, lang language.Tag, logger *zap.Logger) *Registry {
	return &Registry{
		catalog:  cat,
		db:       db,
		language: lang,
		logger:   logger,
		states:   make(map[string]*State),
	}
}

// Get returns the signed-in state of an account, signing it in if needed
func (r *Registry) Get(ctx context.Context, accountID string) (*State, error) {
	r.mu.Lock()
	state, ok := r.states[accountID]
	if !ok {
		state = New(accountID, r.catalog, r.db, r.language, r.logger)
		r.states[accountID] = state
	}
	r.mu.Unlock()

	if err := state.EnsureSignedIn(ctx); err != nil {
		return nil, err
	}
	return state, nil
}

// SignOut signs an account out and forgets its state
func (r *Registry) SignOut(accountID string) {
	r.mu.Lock()
	state, ok := r.states[accountID]
	delete(r.states, accountID)
	r.mu.Unlock()

	if ok {
		state.SignOut()
	}
}

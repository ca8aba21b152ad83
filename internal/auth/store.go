package auth

import (
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore is an interface for saving, loading and forgetting OAuth tokens.
type TokenStore interface {
	SaveToken(token *oauth2.Token) error
	LoadToken() (*oauth2.Token, error)
	ClearToken() error
}

// MemoryTokenStore keeps the session token in process memory only. Nothing
// is written to disk, so a restart signs the admin out of Google.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewMemoryTokenStore creates an empty MemoryTokenStore.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// SaveToken stores a copy of token.
func (store *MemoryTokenStore) SaveToken(token *oauth2.Token) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if token == nil {
		store.token = nil
		return nil
	}
	copied := *token
	store.token = &copied
	return nil
}

// LoadToken returns nil, nil when no token has been saved.
func (store *MemoryTokenStore) LoadToken() (*oauth2.Token, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	if store.token == nil {
		return nil, nil
	}
	copied := *store.token
	return &copied, nil
}

// ClearToken forgets the stored token.
func (store *MemoryTokenStore) ClearToken() error {
	store.mu.Lock()
	store.token = nil
	store.mu.Unlock()
	return nil
}

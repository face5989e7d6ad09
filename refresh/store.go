package refresh

import "sync"

// TokenStore caches the client's current access and refresh tokens.
type TokenStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// NewTokenStore returns a store holding the given pair.
func NewTokenStore(access, refresh string) *TokenStore {
	return &TokenStore{access: access, refresh: refresh}
}

// Set replaces both tokens.
func (s *TokenStore) Set(access, refresh string) {
	s.mu.Lock()
	s.access, s.refresh = access, refresh
	s.mu.Unlock()
}

func (s *TokenStore) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *TokenStore) Refresh() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Clear forgets both tokens.
func (s *TokenStore) Clear() {
	s.Set("", "")
}

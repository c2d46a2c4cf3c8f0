package tokenstore

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// MemoryStore holds the token in process memory
type MemoryStore struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

// NewMemoryStore creates a MemoryStore, optionally pre-seeded
func NewMemoryStore(tok *oauth2.Token) *MemoryStore {
	return &MemoryStore{tok: tok}
}

// Load returns a copy of the stored token
func (s *MemoryStore) Load(ctx context.Context) (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tok == nil {
		return nil, ErrTokenNotFound
	}
	cp := *s.tok
	return &cp, nil
}

// Save replaces the stored token
func (s *MemoryStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tok
	s.tok = &cp
	return nil
}

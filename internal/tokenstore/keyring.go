package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const keyringItemKey = "gmail-oauth-token"

// KeyringStore keeps the token in the OS secret store
type KeyringStore struct {
	ring keyring.Keyring
	key  string
}

// NewKeyringStore wraps an already opened keyring
func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring, key: keyringItemKey}
}

// OpenKeyringStore opens the platform keyring for service, falling back to an
// encrypted file keyring under dir on hosts without a secret service.
func OpenKeyringStore(service, dir string) (*KeyringStore, error) {
	if service == "" {
		service = "mail-digest"
	}
	if dir == "" {
		dir = "~/.config/" + service + "/keyring"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStore(ring), nil
}

// Load reads the token item
func (s *KeyringStore) Load(ctx context.Context) (*oauth2.Token, error) {
	item, err := s.ring.Get(s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("getting token %q: %w", s.key, err)
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal(item.Data, tok); err != nil {
		return nil, fmt.Errorf("decoding token %q: %w", s.key, err)
	}
	return tok, nil
}

// Save stores the token item, replacing any previous value
func (s *KeyringStore) Save(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return errors.New("token cannot be nil")
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:         s.key,
		Data:        data,
		Label:       "Mail digest Gmail token",
		Description: "OAuth token used to read the digest mailbox",
	})
	if err != nil {
		return fmt.Errorf("setting token %q: %w", s.key, err)
	}
	return nil
}

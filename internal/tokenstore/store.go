// Package tokenstore persists the mailbox OAuth token between runs.
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// ErrTokenNotFound indicates no token has been stored yet
var ErrTokenNotFound = errors.New("oauth token not found")

// Store loads and saves a single OAuth token
type Store interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
}

// Kinds accepted by New
const (
	KindFile    = "file"
	KindKeyring = "keyring"
	KindMemory  = "memory"
)

// Options selects and configures a Store
type Options struct {
	Kind           string
	FilePath       string
	KeyringService string
	KeyringDir     string
}

// New builds the store named by opts.Kind
func New(opts Options) (Store, error) {
	switch opts.Kind {
	case KindFile, "":
		return NewFileStore(opts.FilePath), nil
	case KindKeyring:
		return OpenKeyringStore(opts.KeyringService, opts.KeyringDir)
	case KindMemory:
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", opts.Kind)
	}
}

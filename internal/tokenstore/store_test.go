package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func sampleToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "ya29.access",
		TokenType:    "Bearer",
		RefreshToken: "1//refresh",
		Expiry:       time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"file":    NewFileStore(filepath.Join(t.TempDir(), "nested", "token.json")),
		"keyring": NewKeyringStore(keyring.NewArrayKeyring(nil)),
		"memory":  NewMemoryStore(nil),
	}
}

func TestStores_LoadBeforeSave_ReturnsNotFound(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := store.Load(context.Background())
			assert.ErrorIs(t, err, ErrTokenNotFound)
			assert.Nil(t, tok)
		})
	}
}

func TestStores_SaveThenLoad(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleToken()
			require.NoError(t, store.Save(context.Background(), want))

			got, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want.AccessToken, got.AccessToken)
			assert.Equal(t, want.RefreshToken, got.RefreshToken)
			assert.True(t, want.Expiry.Equal(got.Expiry))
		})
	}
}

func TestStores_SaveNil_ReturnsError(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Save(context.Background(), nil))
		})
	}
}

func TestFileStore_WritesOwnerOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), sampleToken()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(sampleToken())

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	got.AccessToken = "mutated"

	again, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", again.AccessToken)
}

func TestNew_SelectsKind(t *testing.T) {
	fileStore, err := New(Options{Kind: KindFile, FilePath: filepath.Join(t.TempDir(), "t.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, fileStore)

	memStore, err := New(Options{Kind: KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, memStore)

	_, err = New(Options{Kind: "vault"})
	assert.Error(t, err)
}

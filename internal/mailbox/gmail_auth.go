package mailbox

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/tokenstore"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

const stateTTL = 10 * time.Minute

// LoadGmailOAuthConfig reads the OAuth client credentials file downloaded from Google Cloud
func LoadGmailOAuthConfig(path, redirectURL string) (*oauth2.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("gmail credentials file %s: %w", path, apperrors.ErrNotConfigured)
		}
		return nil, fmt.Errorf("failed to read gmail credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gmail credentials: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

// GmailAuthenticator turns a stored OAuth token into an authorized HTTP client
// and runs the consent exchange that produces the token.
type GmailAuthenticator struct {
	config *oauth2.Config
	store  tokenstore.Store
	logger *slog.Logger

	mu     sync.Mutex
	states map[string]time.Time
}

// NewGmailAuthenticator creates an authenticator backed by store
func NewGmailAuthenticator(cfg *oauth2.Config, store tokenstore.Store, logger *slog.Logger) *GmailAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GmailAuthenticator{
		config: cfg,
		store:  store,
		logger: logger,
		states: make(map[string]time.Time),
	}
}

// HTTPClient returns a client that refreshes the token when it expires and
// writes refreshed tokens back to the store.
func (a *GmailAuthenticator) HTTPClient(ctx context.Context) (*http.Client, error) {
	tok, err := a.store.Load(ctx)
	if err != nil {
		if errors.Is(err, tokenstore.ErrTokenNotFound) {
			return nil, fmt.Errorf("no gmail token stored, run the authorize command: %w", apperrors.ErrNotConfigured)
		}
		return nil, fmt.Errorf("failed to load gmail token: %w", err)
	}

	// refreshes must outlive the request context that triggered them
	base := a.config.TokenSource(context.Background(), tok)
	src := &persistingTokenSource{
		base:   base,
		store:  a.store,
		last:   tok.AccessToken,
		logger: a.logger,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

// HasToken reports whether a token has been stored
func (a *GmailAuthenticator) HasToken(ctx context.Context) bool {
	_, err := a.store.Load(ctx)
	return err == nil
}

// AuthCodeURL returns the consent URL together with the state it embeds
func (a *GmailAuthenticator) AuthCodeURL() (string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	a.mu.Lock()
	now := time.Now()
	a.states[state] = now.Add(stateTTL)
	for s, exp := range a.states {
		if exp.Before(now) {
			delete(a.states, s)
		}
	}
	a.mu.Unlock()

	url := a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return url, state, nil
}

// Exchange trades an authorization code for a token and stores it
func (a *GmailAuthenticator) Exchange(ctx context.Context, code, state string) error {
	if !a.consumeState(state) {
		return fmt.Errorf("invalid or expired oauth state: %w", apperrors.ErrInvalidInput)
	}

	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: oauth code exchange: %v", apperrors.ErrAuthFailed, err)
	}

	if err := a.store.Save(ctx, tok); err != nil {
		return fmt.Errorf("failed to store gmail token: %w", err)
	}
	a.logger.Info("gmail token stored", slog.Time("expiry", tok.Expiry))
	return nil
}

func (a *GmailAuthenticator) consumeState(state string) bool {
	if state == "" {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	exp, ok := a.states[state]
	if !ok {
		return false
	}
	delete(a.states, state)
	return time.Now().Before(exp)
}

type persistingTokenSource struct {
	base   oauth2.TokenSource
	store  tokenstore.Store
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.store.Save(context.Background(), tok); err != nil {
			s.logger.Warn("failed to persist refreshed gmail token", slog.String("error", err.Error()))
		} else {
			s.last = tok.AccessToken
		}
	}
	return tok, nil
}

// unavailableSource reports why no Gmail client can be built
type unavailableSource struct {
	err error
}

// UnavailableSource returns a ClientSource that always fails with err.
// It keeps the reader wired when credentials are missing so runs record a fetch failure.
func UnavailableSource(err error) ClientSource {
	return unavailableSource{err: err}
}

func (s unavailableSource) HTTPClient(context.Context) (*http.Client, error) {
	return nil, s.err
}

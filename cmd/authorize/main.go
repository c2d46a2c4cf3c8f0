// Command authorize runs the one-time Gmail consent flow and stores the
// resulting token where the server's mailbox reader will find it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/welldanyogia/webrana-mail-digest/internal/config"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailbox"
	"github.com/welldanyogia/webrana-mail-digest/internal/tokenstore"
)

func main() {
	envFile := flag.String("env-file", "", "Path to env file (default: .env if present)")
	redirectURL := flag.String("redirect-url", "", "OAuth redirect URL registered for the client (overrides GMAIL_REDIRECT_URL)")
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			fail("failed to load env file: %v", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		fail("configuration error: %v", err)
	}
	if *redirectURL != "" {
		cfg.GmailRedirectURL = *redirectURL
	}

	log := logger.New(os.Stderr, cfg.AppEnv, cfg.LogLevel)

	oauthCfg, err := mailbox.LoadGmailOAuthConfig(cfg.GmailCredentialsPath, cfg.GmailRedirectURL)
	if err != nil {
		fail("%v", err)
	}

	store, err := tokenstore.New(tokenstore.Options{
		Kind:           cfg.TokenStore,
		FilePath:       cfg.GmailTokenPath,
		KeyringService: cfg.KeyringService,
	})
	if err != nil {
		fail("failed to open token store: %v", err)
	}
	if cfg.TokenStore == tokenstore.KindMemory {
		fail("TOKEN_STORE=memory cannot persist a token; use file or keyring")
	}

	auth := mailbox.NewGmailAuthenticator(oauthCfg, store, log)
	authURL, state, err := auth.AuthCodeURL()
	if err != nil {
		fail("%v", err)
	}

	fmt.Println("Open this URL in a browser and grant read-only Gmail access:")
	fmt.Println()
	fmt.Println(authURL)
	fmt.Println()
	fmt.Print("Paste the authorization code or the full redirect URL: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fail("failed to read authorization code: %v", err)
	}

	code, err := extractCode(line)
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := auth.Exchange(ctx, code, state); err != nil {
		fail("authorization failed: %v", err)
	}
	fmt.Printf("Gmail token stored (%s).\n", cfg.TokenStore)
}

// extractCode accepts a bare code or a redirect URL carrying ?code=
func extractCode(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty authorization code")
	}
	if !strings.Contains(input, "code=") {
		return input, nil
	}

	query := input
	if u, err := url.Parse(input); err == nil && u.RawQuery != "" {
		query = u.RawQuery
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	if e := values.Get("error"); e != "" {
		return "", fmt.Errorf("authorization was not granted: %s", e)
	}
	code := values.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL has no code parameter")
	}
	return code, nil
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

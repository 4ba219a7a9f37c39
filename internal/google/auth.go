// Package google manages the OAuth credential used for Google Calendar
// access. The token is cached on disk and reloaded on every use; an
// expired token is refreshed in place when a refresh token is present,
// otherwise an interactive browser flow is run against a local
// listening port. The token file is written without locking, so
// concurrent authorizations may race on it.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/internal/logger"
)

// CalendarEventsScope permits event writes on the user's calendars.
// Changing the scope invalidates cached tokens; delete the token file
// after editing this.
const CalendarEventsScope = "https://www.googleapis.com/auth/calendar.events"

// ErrMissingClientSecret is returned when neither a client-secret file
// nor a cached token is available.
var ErrMissingClientSecret = errors.New("missing Google client secret: download credentials.json from the Google Cloud Console")

// TokenStore loads, refreshes and persists the OAuth token backing the
// calendar tool.
type TokenStore struct {
	credentialsFile string
	tokenFile       string
	oauthPort       int

	// endpoint overrides the Google OAuth endpoints when set; used by tests.
	endpoint *oauth2.Endpoint
}

// NewTokenStore creates a TokenStore for the configured file locations.
func NewTokenStore(cfg config.GoogleConfig) *TokenStore {
	return &TokenStore{
		credentialsFile: cfg.CredentialsFile,
		tokenFile:       cfg.TokenFile,
		oauthPort:       cfg.OAuthPort,
	}
}

// Client returns an HTTP client authorized for calendar-event writes.
// The cached token is loaded from disk on every call; a refresh or
// interactive authorization persists the new token before returning.
func (s *TokenStore) Client(ctx context.Context) (*http.Client, error) {
	tok, tokErr := s.loadToken()

	conf, confErr := s.oauthConfig()
	if confErr != nil {
		if tokErr != nil {
			return nil, ErrMissingClientSecret
		}
		// A cached token without client-secret material can still be
		// used until it expires; refresh is impossible.
		logger.L.Warn("no client secret available; using cached token without refresh", "file", s.tokenFile)
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok)), nil
	}

	if tokErr == nil {
		ts := conf.TokenSource(ctx, tok)
		fresh, err := ts.Token()
		if err == nil {
			if fresh.AccessToken != tok.AccessToken {
				if err := s.saveToken(fresh); err != nil {
					return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
				}
				logger.L.Info("refreshed Google OAuth token", "file", s.tokenFile)
			}
			return oauth2.NewClient(ctx, ts), nil
		}
		logger.L.Warn("cached token unusable; starting interactive authorization", "error", err)
	}

	tok, err := s.authorize(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err := s.saveToken(tok); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}
	return oauth2.NewClient(ctx, conf.TokenSource(ctx, tok)), nil
}

func (s *TokenStore) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(s.credentialsFile)
	if err != nil {
		return nil, err
	}
	conf, err := googleoauth.ConfigFromJSON(data, CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("invalid client secret file %s: %w", s.credentialsFile, err)
	}
	if s.endpoint != nil {
		conf.Endpoint = *s.endpoint
	}
	return conf, nil
}

func (s *TokenStore) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", s.tokenFile, err)
	}
	return &tok, nil
}

func (s *TokenStore) saveToken(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.tokenFile); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.tokenFile, data, 0600)
}

// authorize runs the interactive flow: it listens on a local port,
// logs the authorization URL for the user's browser, and exchanges the
// returned code for a token.
func (s *TokenStore) authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.oauthPort))
	if err != nil {
		return nil, fmt.Errorf("failed to open local port for OAuth callback: %w", err)
	}
	defer ln.Close()

	conf.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())
	state := uuid.NewString()
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
	logger.L.Info("authorize calendar access by opening this URL in your browser", "url", authURL)

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		codeCh <- code
	})

	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Warn("OAuth callback server error", "error", err)
		}
	}()
	defer srv.Shutdown(context.Background())

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case code := <-codeCh:
		tok, err := conf.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
		}
		return tok, nil
	}
}

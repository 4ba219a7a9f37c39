package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/araval/sahayak-go/internal/config"
)

const sampleCredentials = `{
  "installed": {
    "client_id": "client-id.apps.googleusercontent.com",
    "client_secret": "client-secret",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": "https://oauth2.googleapis.com/token",
    "redirect_uris": ["http://localhost"]
  }
}`

func newStore(t *testing.T, withCredentials bool) (*TokenStore, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GoogleConfig{
		CredentialsFile: filepath.Join(dir, "credentials.json"),
		TokenFile:       filepath.Join(dir, "token.json"),
	}
	if withCredentials {
		if err := os.WriteFile(cfg.CredentialsFile, []byte(sampleCredentials), 0600); err != nil {
			t.Fatalf("write credentials: %v", err)
		}
	}
	return NewTokenStore(cfg), cfg.TokenFile
}

func writeToken(t *testing.T, path string, tok oauth2.Token) {
	t.Helper()
	data, err := json.Marshal(tok)
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write token: %v", err)
	}
}

func TestClient_MissingClientSecret(t *testing.T) {
	store, _ := newStore(t, false)
	_, err := store.Client(context.Background())
	if !errors.Is(err, ErrMissingClientSecret) {
		t.Fatalf("expected ErrMissingClientSecret, got %v", err)
	}
}

// TestClient_RefreshesExpiredToken verifies that an expired access
// token with a refresh token is refreshed against the token endpoint
// without any interactive prompt, and that the refreshed token is
// persisted to disk.
func TestClient_RefreshesExpiredToken(t *testing.T) {
	var refreshCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Fatalf("unexpected grant_type: %s", got)
		}
		if got := r.Form.Get("refresh_token"); got != "refresh-1" {
			t.Fatalf("unexpected refresh_token: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-2",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	store, tokenFile := newStore(t, true)
	store.endpoint = &oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}
	writeToken(t, tokenFile, oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	})

	client, err := store.Client(context.Background())
	if err != nil {
		t.Fatalf("Client returned error: %v", err)
	}
	if client == nil {
		t.Fatal("expected an HTTP client")
	}
	if refreshCalls != 1 {
		t.Fatalf("expected 1 refresh call, got %d", refreshCalls)
	}

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	var persisted oauth2.Token
	if err := json.Unmarshal(data, &persisted); err != nil {
		t.Fatalf("unmarshal persisted token: %v", err)
	}
	if persisted.AccessToken != "access-2" {
		t.Fatalf("refreshed token not persisted, got %q", persisted.AccessToken)
	}
	if persisted.RefreshToken != "refresh-1" {
		t.Fatalf("refresh token lost on persist, got %q", persisted.RefreshToken)
	}
}

// TestClient_ValidTokenNoRefresh verifies that a still-valid token is
// used as is, without touching the token endpoint.
func TestClient_ValidTokenNoRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("token endpoint should not be called for a valid token")
	}))
	defer srv.Close()

	store, tokenFile := newStore(t, true)
	store.endpoint = &oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}
	writeToken(t, tokenFile, oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	})

	if _, err := store.Client(context.Background()); err != nil {
		t.Fatalf("Client returned error: %v", err)
	}
}

// TestClient_TokenWithoutCredentials verifies that a cached token is
// still usable when the client secret file is absent.
func TestClient_TokenWithoutCredentials(t *testing.T) {
	store, tokenFile := newStore(t, false)
	writeToken(t, tokenFile, oauth2.Token{
		AccessToken: "access-1",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	})

	client, err := store.Client(context.Background())
	if err != nil {
		t.Fatalf("Client returned error: %v", err)
	}
	if client == nil {
		t.Fatal("expected an HTTP client")
	}
}

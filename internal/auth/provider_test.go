package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// tokenServer fakes the provider token endpoint. It records grant types and
// fails when fail is set.
type tokenServer struct {
	*httptest.Server
	mu     sync.Mutex
	grants []string
	fail   atomic.Bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		ts.mu.Lock()
		ts.grants = append(ts.grants, r.PostForm.Get("grant_type"))
		ts.mu.Unlock()

		if ts.fail.Load() || r.PostForm.Get("client_secret") != "provider-secret" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`)) //nolint:errcheck // test server
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			w.Write([]byte(`{"access_token":"access-1","token_type":"bearer","expires_in":3600,"refresh_token":"refresh-1"}`)) //nolint:errcheck // test server
		case "refresh_token":
			w.Write([]byte(`{"access_token":"access-2","token_type":"bearer","expires_in":3600}`)) //nolint:errcheck // test server
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) grantTypes() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]string(nil), ts.grants...)
}

func newTestLink(t *testing.T, ts *tokenServer) (*ProviderLink, *SQLiteLinkRepository) {
	t.Helper()
	repo := NewLinkRepository(testDB(t))
	link := NewProviderLink(ProviderConfig{
		ClientID:     "provider-client",
		ClientSecret: "provider-secret",
		TokenURL:     ts.URL,
		Timeout:      5 * time.Second,
	}, repo)
	return link, repo
}

func TestProviderLink_MissingAccountLinking(t *testing.T) {
	link, _ := newTestLink(t, newTokenServer(t))

	var changes []bool
	link.OnConnectivityChange(func(c bool) { changes = append(changes, c) })

	if _, err := link.AccessToken(context.Background()); !errors.Is(err, ErrMissingAccountLinking) {
		t.Fatalf("AccessToken() error = %v, want ErrMissingAccountLinking", err)
	}
	if link.Connected() {
		t.Error("Connected() = true without a link")
	}
	if len(changes) != 0 {
		t.Errorf("connectivity callbacks = %v, want none (already disconnected)", changes)
	}
}

func TestProviderLink_AcceptGrantThenCachedToken(t *testing.T) {
	ts := newTokenServer(t)
	link, repo := newTestLink(t, ts)
	ctx := context.Background()

	var changes []bool
	link.OnConnectivityChange(func(c bool) { changes = append(changes, c) })

	if err := link.AcceptGrant(ctx, "grant-code"); err != nil {
		t.Fatalf("AcceptGrant() error = %v", err)
	}
	stored, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.AccessToken != "access-1" || stored.RefreshToken != "refresh-1" {
		t.Errorf("stored link = %+v", stored)
	}

	token, err := link.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if token != "access-1" {
		t.Errorf("AccessToken() = %q, want access-1", token)
	}
	if got := ts.grantTypes(); len(got) != 1 {
		t.Errorf("token endpoint calls = %v, want only the grant exchange", got)
	}
	if len(changes) != 1 || !changes[0] {
		t.Errorf("connectivity callbacks = %v, want [true]", changes)
	}
}

func TestProviderLink_RefreshesExpiredToken(t *testing.T) {
	ts := newTokenServer(t)
	link, repo := newTestLink(t, ts)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	link.SetClock(fixedClock(&now))

	err := repo.Save(ctx, &Link{AccessToken: "stale", RefreshToken: "refresh-0", ExpiresAt: now.Add(-time.Minute)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	token, err := link.AccessToken(ctx)
	if err != nil {
		t.Fatalf("AccessToken() error = %v", err)
	}
	if token != "access-2" {
		t.Errorf("AccessToken() = %q, want access-2", token)
	}

	stored, _ := repo.Get(ctx)
	if stored.AccessToken != "access-2" {
		t.Errorf("stored access token = %q, want access-2", stored.AccessToken)
	}
	if stored.RefreshToken != "refresh-0" {
		t.Errorf("stored refresh token = %q, want the previous one kept", stored.RefreshToken)
	}
	if got := ts.grantTypes(); len(got) != 1 || got[0] != "refresh_token" {
		t.Errorf("grant types = %v, want [refresh_token]", got)
	}
	if !link.Connected() {
		t.Error("Connected() = false after refresh")
	}
}

func TestProviderLink_RefreshFailureClearsConnectivity(t *testing.T) {
	ts := newTokenServer(t)
	link, repo := newTestLink(t, ts)
	ctx := context.Background()

	if err := link.AcceptGrant(ctx, "grant-code"); err != nil {
		t.Fatalf("AcceptGrant() error = %v", err)
	}
	if !link.Connected() {
		t.Fatal("Connected() = false after AcceptGrant")
	}

	stored, _ := repo.Get(ctx)
	stored.ExpiresAt = time.Now().Add(-time.Hour)
	if err := repo.Save(ctx, stored); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	ts.fail.Store(true)

	if _, err := link.AccessToken(ctx); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("AccessToken() error = %v, want ErrProviderUnavailable", err)
	}
	if link.Connected() {
		t.Error("Connected() = true after failed refresh")
	}
}

func TestProviderLink_AcceptGrantFailure(t *testing.T) {
	ts := newTokenServer(t)
	ts.fail.Store(true)
	link, _ := newTestLink(t, ts)

	if err := link.AcceptGrant(context.Background(), "grant-code"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("AcceptGrant() error = %v, want ErrProviderUnavailable", err)
	}
	if err := link.AcceptGrant(context.Background(), ""); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("AcceptGrant(\"\") error = %v, want ErrProviderUnavailable", err)
	}
}

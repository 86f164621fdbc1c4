package mpesa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTokenCache_SingleExchange(t *testing.T) {
	var exchanges int32
	tc := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		atomic.AddInt32(&exchanges, 1)
		return "tok-1", time.Hour, nil
	})

	for i := 0; i < 3; i++ {
		tok, err := tc.Token(context.Background())
		if err != nil {
			t.Fatalf("Token() returned error: %v", err)
		}
		if tok != "tok-1" {
			t.Errorf("Token() = %q, want tok-1", tok)
		}
	}

	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("expected exactly 1 exchange, got %d", n)
	}
}

func TestTokenCache_RefreshAfterExpiry(t *testing.T) {
	var exchanges int32
	tc := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		n := atomic.AddInt32(&exchanges, 1)
		// First token is already inside the safety margin.
		if n == 1 {
			return "stale", time.Second, nil
		}
		return "fresh", time.Hour, nil
	})

	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("Token() returned error: %v", err)
	}

	tok, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() returned error: %v", err)
	}
	if tok != "fresh" {
		t.Errorf("Token() = %q, want fresh", tok)
	}
	if n := atomic.LoadInt32(&exchanges); n != 2 {
		t.Errorf("expected exactly 2 exchanges, got %d", n)
	}
}

func TestTokenCache_FailureNotCached(t *testing.T) {
	var exchanges int32
	tc := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		if atomic.AddInt32(&exchanges, 1) == 1 {
			return "", 0, fmt.Errorf("gateway down")
		}
		return "tok-2", time.Hour, nil
	})

	_, err := tc.Token(context.Background())
	if !errors.Is(err, ErrTokenAcquisitionFailed) {
		t.Fatalf("Token() error = %v, want ErrTokenAcquisitionFailed", err)
	}

	tok, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() after failure returned error: %v", err)
	}
	if tok != "tok-2" {
		t.Errorf("Token() = %q, want tok-2", tok)
	}
}

func TestTokenCache_ConcurrentStaleRefresh(t *testing.T) {
	var exchanges int32
	tc := NewTokenCache(func(ctx context.Context) (string, time.Duration, error) {
		atomic.AddInt32(&exchanges, 1)
		time.Sleep(10 * time.Millisecond)
		return "shared", time.Hour, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := tc.Token(context.Background())
			if err != nil {
				t.Errorf("Token() returned error: %v", err)
				return
			}
			if tok != "shared" {
				t.Errorf("Token() = %q, want shared", tok)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&exchanges); n != 1 {
		t.Errorf("expected the losing callers to reuse the winner's exchange, got %d exchanges", n)
	}
}

func TestClient_ExchangeToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("grant_type") != "client_credentials" {
			t.Errorf("missing client_credentials grant type")
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ck" || pass != "cs" {
			t.Errorf("basic auth = %q:%q, want ck:cs", user, pass)
		}
		fmt.Fprint(w, `{"access_token":"abc123","expires_in":"3599"}`)
	}))
	defer srv.Close()

	c := newClientWithHTTP(Config{
		BaseURL:        srv.URL,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
	}, srv.Client())

	tok, ttl, err := c.exchangeToken(context.Background())
	if err != nil {
		t.Fatalf("exchangeToken() returned error: %v", err)
	}
	if tok != "abc123" {
		t.Errorf("token = %q, want abc123", tok)
	}
	if ttl != 3599*time.Second {
		t.Errorf("ttl = %v, want 3599s", ttl)
	}
}

func TestClient_ExchangeTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"errorMessage":"Invalid Authentication passed"}`)
	}))
	defer srv.Close()

	c := newClientWithHTTP(Config{BaseURL: srv.URL}, srv.Client())

	_, err := c.tokens.Token(context.Background())
	if !errors.Is(err, ErrTokenAcquisitionFailed) {
		t.Fatalf("Token() error = %v, want ErrTokenAcquisitionFailed", err)
	}
}

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/epsil/linkgrab/internal/fingerprint"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New(Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

func TestRobotsGate_Disallow(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	gate := NewRobotsGate(newTestFetcher(t), nil)
	ctx := context.Background()

	allowed, err := gate.IsAllowed(ctx, ts.URL+"/private/page", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Error("expected /private/ to be disallowed")
	}

	allowed, err = gate.IsAllowed(ctx, ts.URL+"/public/page", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("expected /public/ to be allowed")
	}
}

func TestRobotsGate_MissingFailsOpen(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	gate := NewRobotsGate(newTestFetcher(t), nil)

	allowed, err := gate.IsAllowed(context.Background(), ts.URL+"/anything", "*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed {
		t.Error("missing robots.txt should fail open")
	}
}

func TestRobotsGate_CachesPerHost(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
		}
	}))
	defer ts.Close()

	gate := NewRobotsGate(newTestFetcher(t), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := gate.IsAllowed(ctx, ts.URL+"/page", "*"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("expected a single robots.txt fetch, got %d", got)
	}
}

func TestRobotsGate_InvalidURL(t *testing.T) {
	gate := NewRobotsGate(newTestFetcher(t), nil)
	if _, err := gate.IsAllowed(context.Background(), "://bad", "*"); err == nil {
		t.Error("expected error for invalid url")
	}
}

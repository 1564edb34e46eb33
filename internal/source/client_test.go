package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/electionmap/internal/models"
)

func newTestClient(maxRetries int) *Client {
	return NewClient(5*time.Second, maxRetries, time.Millisecond)
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("State,Winner\n"))
	}))
	t.Cleanup(srv.Close)

	body, err := newTestClient(2).Fetch(context.Background(), srv.URL+"/data.csv")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "State,Winner\n" {
		t.Errorf("body = %q", body)
	}
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(3).Fetch(context.Background(), srv.URL)
	if !models.IsFetch(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if err.Error() != "Failed to fetch data: Not Found" {
		t.Errorf("message = %q", err.Error())
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	body, err := newTestClient(3).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "ok" || calls.Load() != 3 {
		t.Errorf("body %q after %d calls", body, calls.Load())
	}
}

func TestFetch_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(2).Fetch(context.Background(), srv.URL)
	if !models.IsFetch(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if err.Error() != "Failed to fetch data: Service Unavailable" {
		t.Errorf("message = %q", err.Error())
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestFetch_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results.csv")
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newTestClient(0)

	for _, src := range []string{path, "file://" + path} {
		body, err := c.Fetch(context.Background(), src)
		if err != nil {
			t.Fatalf("Fetch(%s): %v", src, err)
		}
		if string(body) != "a,b\n" {
			t.Errorf("body = %q", body)
		}
	}

	_, err := c.Fetch(context.Background(), filepath.Join(dir, "missing.csv"))
	if !models.IsFetch(err) {
		t.Errorf("expected fetch error for missing file, got %v", err)
	}
}

func TestFetch_EmptySource(t *testing.T) {
	_, err := newTestClient(0).Fetch(context.Background(), "  ")
	if !models.IsFetch(err) || err.Error() != "No data file path provided" {
		t.Errorf("got %v", err)
	}
}

func TestFetch_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(3).Fetch(ctx, srv.URL)
	if !models.IsFetch(err) {
		t.Errorf("expected fetch error, got %v", err)
	}
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/epsil/linkgrab/internal/storage"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8899)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	// Record a fetch to verify metrics format correctly
	rec := &storage.FetchRecord{
		StatusCode: 200,
		Blocked:    false,
		Body:       []byte("hello world"), // 11 bytes
		Duration:   1 * time.Second,
	}

	RecordFetch("example.com", rec)
	SearchAttemptsTotal.WithLabelValues("amazon", "found").Inc()

	resp, err := http.Get("http://localhost:8899/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, "linkgrab_fetch_requests_total") {
		t.Errorf("expected linkgrab_fetch_requests_total metric")
	}
	if !strings.Contains(output, "linkgrab_search_attempts_total") {
		t.Errorf("expected linkgrab_search_attempts_total metric")
	}
	if !strings.Contains(output, "linkgrab_fetch_bytes_total") {
		t.Errorf("expected linkgrab_fetch_bytes_total metric")
	}
}

func TestRecordFetch_NilRecord(t *testing.T) {
	// Must not panic
	RecordFetch("example.com", nil)
}

func TestRecordFetch_ErrorStatus(t *testing.T) {
	rec := &storage.FetchRecord{
		Error:    "connection refused",
		Duration: 10 * time.Millisecond,
	}
	// Labelled "error" rather than "0"; just verify it does not panic
	RecordFetch("example.com", rec)
}

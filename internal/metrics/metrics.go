package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/epsil/linkgrab/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_fetch_requests_total",
			Help: "Total number of HTTP fetches executed",
		},
		[]string{"domain", "status", "blocked", "block_src"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkgrab_fetch_duration_seconds",
			Help:    "Duration of HTTP fetches in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	FetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_fetch_bytes_total",
			Help: "Total bytes downloaded across all fetches",
		},
		[]string{"domain"},
	)

	SearchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_search_attempts_total",
			Help: "Search attempts by provider and per-attempt outcome",
		},
		[]string{"provider", "outcome"},
	)

	MirrorPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgrab_mirror_pages_total",
			Help: "Result pages walked during mirror collection",
		},
	)

	MirrorEntriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkgrab_mirror_entries_total",
			Help: "Download entries extracted during mirror collection",
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkgrab_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordFetch updates the fetch metrics given a FetchRecord and domain.
func RecordFetch(domain string, rec *storage.FetchRecord) {
	if rec == nil {
		return
	}

	blockedStr := "false"
	if rec.Blocked {
		blockedStr = "true"
	}

	statusStr := strconv.Itoa(rec.StatusCode)
	if rec.Error != "" {
		statusStr = "error"
	}

	FetchRequestsTotal.WithLabelValues(domain, statusStr, blockedStr, rec.BlockSrc).Inc()
	FetchDuration.WithLabelValues(domain).Observe(rec.Duration.Seconds())
	FetchBytesTotal.WithLabelValues(domain).Add(float64(len(rec.Body)))
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

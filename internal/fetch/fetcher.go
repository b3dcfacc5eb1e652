package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/epsil/linkgrab/internal/block"
	"github.com/epsil/linkgrab/internal/fingerprint"
	"github.com/epsil/linkgrab/internal/metrics"
	"github.com/epsil/linkgrab/internal/storage"
	"github.com/epsil/linkgrab/pkg/httpclient"
	"github.com/epsil/linkgrab/pkg/proxy"
	"github.com/epsil/linkgrab/pkg/ratelimit"
	"github.com/epsil/linkgrab/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	// Audit, when set, receives a FetchRecord for every fetch.
	Audit  storage.Backend
	Logger *slog.Logger
}

// Fetcher performs single-shot GETs against search and mirror endpoints.
// A fetch never returns a transport error directly; failures are folded into
// the returned record's Error field so callers can treat "no response" and
// "no result" uniformly, the way the retry loop wants them.
type Fetcher struct {
	config Config
	client *httpclient.Client
	logger *slog.Logger
}

// New initializes a new Fetcher with the given configuration.
// By holding a single client across requests, cookie jars (if configured)
// persist for the lifetime of the Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Create the transport once per fetcher for connection pooling. The proxy
	// function reads from the request context so the pool can rotate proxies
	// per request without mutating the shared transport.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		// Skip env proxies for local test targets so system proxies don't
		// interfere with httptest servers.
		if req.URL.Host == "example.com" || req.URL.Hostname() == "127.0.0.1" {
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Fetch executes a GET request to the target URL, tracking the duration and
// capturing the response into a storage.FetchRecord.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*storage.FetchRecord, error) {
	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			return f.finish(ctx, &storage.FetchRecord{
				ID:        uuid.New().String(),
				URL:       targetURL,
				Method:    http.MethodGet,
				CreatedAt: time.Now().UTC(),
				Error:     fmt.Sprintf("rate limiter failed: %v", err),
			}), nil
		}
	}

	start := time.Now()

	rec := &storage.FetchRecord{
		ID:        uuid.New().String(),
		URL:       targetURL,
		Method:    http.MethodGet,
		CreatedAt: start.UTC(),
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		rec.Error = fmt.Sprintf("failed to create request: %v", err)
		rec.Duration = time.Since(start)
		return f.finish(ctx, rec), nil
	}

	// Dynamic proxy via context
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		rec.Error = fmt.Sprintf("request failed: %v", err)
		rec.Duration = time.Since(start)
		return f.finish(ctx, rec), nil
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		rec.Error = fmt.Sprintf("failed to read body: %v", err)
	}

	rec.StatusCode = resp.StatusCode
	rec.Headers = resp.Header
	rec.Body = body
	rec.Duration = time.Since(start)

	// Flag challenge/captcha pages so callers count them as misses
	block.Analyze(rec, block.DefaultDetectors())

	return f.finish(ctx, rec), nil
}

// finish records metrics and persists the record to the audit backend if one
// is configured. Audit failures are logged, never surfaced.
func (f *Fetcher) finish(ctx context.Context, rec *storage.FetchRecord) *storage.FetchRecord {
	domain := ""
	if u, err := url.Parse(rec.URL); err == nil {
		domain = u.Hostname()
	}
	metrics.RecordFetch(domain, rec)

	if f.config.Audit != nil {
		if err := f.config.Audit.Save(ctx, rec); err != nil {
			f.logger.Warn("failed to save fetch record", "url", rec.URL, "err", err)
		}
	}
	return rec
}

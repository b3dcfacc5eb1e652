// Package search implements best-effort product lookups against flaky search
// endpoints: a fixed number of attempts per query, first hit wins, empty
// result after the budget is spent.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/epsil/linkgrab/internal/extract"
	"github.com/epsil/linkgrab/internal/metrics"
	"github.com/epsil/linkgrab/internal/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultAttempts is the per-query attempt budget. The endpoint is known to
// be flaky under rate limiting, so the budget is generous rather than clever.
const DefaultAttempts = 30

// Fetcher is the narrow fetch dependency, satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*storage.FetchRecord, error)
}

// Provider describes one search integration target.
type Provider struct {
	// Name labels the provider in logs and metrics.
	Name string
	// URLTemplate is a printf template with a single %s slot for the
	// URL-encoded query.
	URLTemplate string
	// Rule locates the result link in the returned page.
	Rule extract.Rule
	// Normalize rewrites a matched URL to its canonical form. Nil means
	// no rewriting.
	Normalize func(string) string
}

// BuildURL renders the provider's search URL for a query.
func (p Provider) BuildURL(query string) string {
	return fmt.Sprintf(p.URLTemplate, url.QueryEscape(query))
}

// Per-attempt outcomes. The original behavior folds all three misses into
// "try again"; keeping them distinct internally makes the logs and metrics
// usable without changing the visible contract.
const (
	outcomeFound     = "found"
	outcomeNoMatch   = "no_match"
	outcomeBlocked   = "blocked"
	outcomeTransport = "transport_error"
)

// Searcher performs bounded-retry searches against a single provider.
type Searcher struct {
	fetcher  Fetcher
	provider Provider
	attempts int
	logger   *slog.Logger
}

// New creates a Searcher. attempts <= 0 selects DefaultAttempts.
func New(fetcher Fetcher, provider Provider, attempts int, logger *slog.Logger) *Searcher {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		fetcher:  fetcher,
		provider: provider,
		attempts: attempts,
		logger:   logger,
	}
}

// Search looks up query, returning the normalized result URL, or "" if no
// attempt produced a match. Transport errors, block pages, and structural
// misses all consume one attempt; the first hit returns immediately.
func (s *Searcher) Search(ctx context.Context, query string) string {
	searchURL := s.provider.BuildURL(query)

	for attempt := 1; attempt <= s.attempts; attempt++ {
		if ctx.Err() != nil {
			return ""
		}

		result, outcome := s.attempt(ctx, searchURL)
		metrics.SearchAttemptsTotal.WithLabelValues(s.provider.Name, outcome).Inc()

		if outcome == outcomeFound {
			s.logger.Debug("search hit", "provider", s.provider.Name, "query", query, "attempt", attempt, "url", result)
			return result
		}
		s.logger.Debug("search miss", "provider", s.provider.Name, "query", query, "attempt", attempt, "outcome", outcome)
	}

	s.logger.Debug("search exhausted", "provider", s.provider.Name, "query", query, "attempts", s.attempts)
	return ""
}

func (s *Searcher) attempt(ctx context.Context, searchURL string) (string, string) {
	rec, err := s.fetcher.Fetch(ctx, searchURL)
	if err != nil || rec == nil || rec.Error != "" {
		return "", outcomeTransport
	}
	if rec.Blocked {
		return "", outcomeBlocked
	}

	doc, err := extract.Parse(rec.Body)
	if err != nil {
		return "", outcomeTransport
	}

	base, err := url.Parse(searchURL)
	if err != nil {
		base = nil
	}

	link, ok := s.provider.Rule.FindLink(doc, base)
	if !ok {
		return "", outcomeNoMatch
	}

	if s.provider.Normalize != nil {
		link = s.provider.Normalize(link)
	}
	return link, outcomeFound
}

// SearchAll resolves a batch of independent queries, up to concurrency at a
// time, preserving input order in the returned slice. Each query keeps the
// full per-query attempt contract. concurrency <= 1 degrades to sequential.
func (s *Searcher) SearchAll(ctx context.Context, queries []string, concurrency int) []string {
	results := make([]string, len(queries))

	if concurrency <= 1 {
		for i, q := range queries {
			results[i] = s.Search(ctx, q)
		}
		return results
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, q := range queries {
		g.Go(func() error {
			results[i] = s.Search(gCtx, q)
			return nil
		})
	}

	// Workers never return errors; misses are empty strings.
	_ = g.Wait()
	return results
}

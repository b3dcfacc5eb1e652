package storage

import (
	"context"
	"time"
)

// FetchRecord captures one HTTP fetch against a search or mirror endpoint.
// Records are only produced when an audit backend is configured; the scrape
// logic itself never reads them back.
type FetchRecord struct {
	ID         string
	URL        string
	Method     string
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
	Blocked    bool
	BlockSrc   string // e.g. "AmazonRobotCheck", "Cloudflare"
	CreatedAt  time.Time
	Error      string // non-empty if the fetch failed before an HTTP response
}

// Filter allows querying for specific FetchRecords.
type Filter struct {
	URL     string
	Blocked *bool
	Since   *time.Time
	Limit   int
	Offset  int
}

// Backend defines the interface for persisting and querying fetch records.
type Backend interface {
	Save(ctx context.Context, rec *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}

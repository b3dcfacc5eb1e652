// Package mirror walks a book-mirror's paginated results table and extracts
// one download entry per row, in row order, page by page.
package mirror

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/epsil/linkgrab/internal/extract"
	"github.com/epsil/linkgrab/internal/metrics"
	"github.com/epsil/linkgrab/internal/storage"
)

// SearchTemplate is the mirror's search endpoint; the %s slot takes the
// URL-encoded query derived from the target directory name.
const SearchTemplate = "http://gen.lib.rus.ec/search.php?req=%s"

// Fetcher is the narrow fetch dependency, satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, targetURL string) (*storage.FetchRecord, error)
}

// RobotsGate optionally vetoes page fetches, satisfied by *fetch.RobotsGate.
type RobotsGate interface {
	IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error)
}

// Entry is one extracted row of the results table: everything a transfer
// command needs.
type Entry struct {
	ID      string // first column, the mirror's numeric identifier
	Ext     string // file extension column
	Link    string // direct download link
	Referer string // the page-variant link the mirror expects as referer
}

// Config describes where the entries live in the page.
type Config struct {
	// Table is the CSS selector for the results table.
	Table string
	// MirrorHost selects which of a row's links is the download candidate.
	MirrorHost string
	// AdVariant and DirectVariant rewrite the ad-supported download link
	// into the direct one.
	AdVariant     string
	DirectVariant string
	// ExtColumn is the zero-based cell index of the file extension.
	ExtColumn int
	// NextMarker is the glyph or text identifying the next-page anchor.
	NextMarker string
	// MaxPages caps the walk; 0 means unlimited.
	MaxPages int
	// UserAgent is only used for robots.txt checks when a gate is set.
	UserAgent string
}

// DefaultConfig returns the rule set for the Library Genesis results layout.
func DefaultConfig() Config {
	return Config{
		Table:         "table.c",
		MirrorHost:    "libgen.io",
		AdVariant:     "get_ads",
		DirectVariant: "get",
		ExtColumn:     8,
		NextMarker:    "►",
		UserAgent:     "*",
	}
}

// Stats summarizes one collection run.
type Stats struct {
	Pages   int
	Entries int
}

// Collector fetches result pages sequentially and emits entries as it goes.
type Collector struct {
	fetcher Fetcher
	cfg     Config
	robots  RobotsGate
	logger  *slog.Logger
}

// New creates a Collector. robots may be nil to skip robots.txt checks.
func New(fetcher Fetcher, cfg Config, robots RobotsGate, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		fetcher: fetcher,
		cfg:     cfg,
		robots:  robots,
		logger:  logger,
	}
}

// Collect walks the results pages starting at startURL, calling emit for each
// extracted entry in row order. Pagination is strictly sequential: the next
// page is only known after the current one is parsed. Any fetch or emit
// failure stops the walk silently; whatever was emitted stays emitted.
func (c *Collector) Collect(ctx context.Context, startURL string, emit func(Entry) error) Stats {
	var stats Stats
	visited := make(map[string]struct{})

	pageURL := startURL
	for pageURL != "" {
		if ctx.Err() != nil {
			return stats
		}
		if _, seen := visited[pageURL]; seen {
			c.logger.Debug("next link loops back, stopping", "url", pageURL)
			return stats
		}
		visited[pageURL] = struct{}{}

		if c.cfg.MaxPages > 0 && stats.Pages >= c.cfg.MaxPages {
			return stats
		}

		if c.robots != nil {
			allowed, err := c.robots.IsAllowed(ctx, pageURL, c.cfg.UserAgent)
			if err == nil && !allowed {
				c.logger.Debug("page blocked by robots.txt", "url", pageURL)
				return stats
			}
		}

		next, ok := c.page(ctx, pageURL, emit, &stats)
		if !ok {
			return stats
		}
		stats.Pages++
		metrics.MirrorPagesTotal.Inc()
		pageURL = next
	}

	return stats
}

// page processes a single results page. It returns the next page URL ("" for
// the last page) and whether the walk should continue.
func (c *Collector) page(ctx context.Context, pageURL string, emit func(Entry) error, stats *Stats) (string, bool) {
	rec, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil || rec == nil || rec.Error != "" {
		c.logger.Debug("page fetch failed", "url", pageURL)
		return "", false
	}

	doc, err := extract.Parse(rec.Body)
	if err != nil {
		c.logger.Debug("page parse failed", "url", pageURL, "err", err)
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	table := doc.Find(c.cfg.Table).First()
	if table.Length() == 0 {
		return "", false
	}

	rows := table.Find("tr")
	if rows.Length() <= 1 {
		// header only, or empty
		return "", false
	}

	ok := true
	rows.Slice(1, rows.Length()).EachWithBreak(func(i int, row *goquery.Selection) bool {
		entry, found := c.row(row, base)
		if !found {
			return true
		}
		if err := emit(entry); err != nil {
			c.logger.Debug("emit failed", "id", entry.ID, "err", err)
			ok = false
			return false
		}
		stats.Entries++
		metrics.MirrorEntriesTotal.Inc()
		return true
	})
	if !ok {
		return "", false
	}

	// Page done; a next-page anchor decides whether the walk continues.
	next, _ := extract.NextByText(doc, c.cfg.NextMarker, base)
	return next, true
}

// row extracts a single entry from a data row, preferring the mirror-host
// link among the row's anchors.
func (c *Collector) row(row *goquery.Selection, base *url.URL) (Entry, bool) {
	cells := row.Find("td")
	if cells.Length() <= c.cfg.ExtColumn {
		return Entry{}, false
	}

	id := strings.TrimSpace(cells.First().Text())
	ext := strings.TrimSpace(cells.Eq(c.cfg.ExtColumn).Text())

	var referer string
	row.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, c.cfg.MirrorHost) {
			referer = extract.ResolveHref(base, href)
			return false
		}
		return true
	})
	if referer == "" {
		return Entry{}, false
	}

	link := strings.Replace(referer, c.cfg.AdVariant, c.cfg.DirectVariant, 1)

	return Entry{
		ID:      id,
		Ext:     ext,
		Link:    link,
		Referer: referer,
	}, true
}

package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/epsil/linkgrab/internal/fetch"
	"github.com/epsil/linkgrab/internal/fingerprint"
)

func testFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	f, err := fetch.New(fetch.Config{
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

// resultRow renders one data row in the mirror's results layout: id in the
// first cell, extension in cell 8, the download link in the last cell.
func resultRow(id, ext, link string) string {
	return fmt.Sprintf(`<tr>
		<td>%s</td><td>Author</td><td>Title</td><td>Pub</td><td>2001</td>
		<td>300</td><td>en</td><td>1 Mb</td><td>%s</td>
		<td><a href="%s">[1]</a></td>
	</tr>`, id, ext, link)
}

func resultsPage(rows []string, nextHref string) string {
	var b strings.Builder
	b.WriteString(`<html><body><table class="c"><tr><td>ID</td><td>Author</td></tr>`)
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString(`</table>`)
	if nextHref != "" {
		b.WriteString(fmt.Sprintf(`<a href="%s">►</a>`, nextHref))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func TestCollect_TwoPagesInOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			page := resultsPage([]string{
				resultRow("104", "pdf", "http://libgen.io/get_ads.php?md5=ddd"),
				resultRow("105", "pdf", "http://libgen.io/get_ads.php?md5=eee"),
			}, "")
			_, _ = w.Write([]byte(page))
			return
		}
		page := resultsPage([]string{
			resultRow("101", "pdf", "http://libgen.io/get_ads.php?md5=aaa"),
			resultRow("102", "epub", "http://libgen.io/get_ads.php?md5=bbb"),
			resultRow("103", "djvu", "http://libgen.io/get_ads.php?md5=ccc"),
		}, "/search.php?page=2")
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	c := New(testFetcher(t), DefaultConfig(), nil, nil)

	var got []Entry
	stats := c.Collect(context.Background(), ts.URL+"/search.php?req=x", func(e Entry) error {
		got = append(got, e)
		return nil
	})

	if stats.Pages != 2 {
		t.Errorf("expected 2 pages, got %d", stats.Pages)
	}
	if stats.Entries != 5 {
		t.Fatalf("expected 5 entries, got %d", stats.Entries)
	}

	wantIDs := []string{"101", "102", "103", "104", "105"}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("entry %d: expected id %s, got %s", i, id, got[i].ID)
		}
	}
	if got[0].Ext != "pdf" || got[1].Ext != "epub" {
		t.Errorf("unexpected extensions: %q, %q", got[0].Ext, got[1].Ext)
	}
	if got[0].Link != "http://libgen.io/get.php?md5=aaa" {
		t.Errorf("expected direct link, got %q", got[0].Link)
	}
	if got[0].Referer != "http://libgen.io/get_ads.php?md5=aaa" {
		t.Errorf("expected ad-variant referer, got %q", got[0].Referer)
	}
}

func TestCollect_MissingTable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>no results</p></body></html>`))
	}))
	defer ts.Close()

	c := New(testFetcher(t), DefaultConfig(), nil, nil)

	stats := c.Collect(context.Background(), ts.URL, func(e Entry) error {
		t.Errorf("unexpected entry %+v", e)
		return nil
	})
	if stats.Entries != 0 || stats.Pages != 0 {
		t.Errorf("expected zero pages and entries, got %+v", stats)
	}
}

func TestCollect_HeaderOnlyTable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(resultsPage(nil, "")))
	}))
	defer ts.Close()

	c := New(testFetcher(t), DefaultConfig(), nil, nil)

	stats := c.Collect(context.Background(), ts.URL, func(e Entry) error {
		t.Errorf("unexpected entry %+v", e)
		return nil
	})
	if stats.Entries != 0 {
		t.Errorf("expected zero entries, got %d", stats.Entries)
	}
}

func TestCollect_RowsWithoutMirrorLinkAreSkipped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := resultsPage([]string{
			resultRow("201", "pdf", "http://elsewhere.example/file"),
			resultRow("202", "pdf", "http://libgen.io/get_ads.php?md5=fff"),
		}, "")
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	c := New(testFetcher(t), DefaultConfig(), nil, nil)

	var got []Entry
	stats := c.Collect(context.Background(), ts.URL, func(e Entry) error {
		got = append(got, e)
		return nil
	})
	if stats.Entries != 1 {
		t.Fatalf("expected 1 entry, got %d", stats.Entries)
	}
	if got[0].ID != "202" {
		t.Errorf("expected the mirror-linked row, got id %s", got[0].ID)
	}
}

func TestCollect_NextLinkCycleTerminates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := resultsPage([]string{
			resultRow("301", "pdf", "http://libgen.io/get_ads.php?md5=ggg"),
		}, "/") // points back at itself
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	c := New(testFetcher(t), DefaultConfig(), nil, nil)

	stats := c.Collect(context.Background(), ts.URL+"/", func(e Entry) error { return nil })
	if stats.Pages != 1 {
		t.Errorf("expected walk to stop after the first page, got %d pages", stats.Pages)
	}
}

func TestCollect_EmitErrorStopsWalk(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := resultsPage([]string{
			resultRow("401", "pdf", "http://libgen.io/get_ads.php?md5=hhh"),
			resultRow("402", "pdf", "http://libgen.io/get_ads.php?md5=iii"),
		}, "/next")
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	c := New(testFetcher(t), DefaultConfig(), nil, nil)

	var emitted int
	stats := c.Collect(context.Background(), ts.URL, func(e Entry) error {
		emitted++
		return errors.New("disk full")
	})
	if emitted != 1 {
		t.Errorf("expected emit to be called once, got %d", emitted)
	}
	if stats.Entries != 0 {
		t.Errorf("failed emit must not count, got %d entries", stats.Entries)
	}
}

func TestCollect_MaxPages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := r.URL.Query().Get("p")
		page := resultsPage([]string{
			resultRow("5"+n, "pdf", "http://libgen.io/get_ads.php?md5="+n),
		}, "/?p=x"+n)
		_, _ = w.Write([]byte(page))
	}))
	defer ts.Close()

	cfg := DefaultConfig()
	cfg.MaxPages = 3
	c := New(testFetcher(t), cfg, nil, nil)

	stats := c.Collect(context.Background(), ts.URL+"/?p=1", func(e Entry) error { return nil })
	if stats.Pages != 3 {
		t.Errorf("expected the page cap to hold, got %d pages", stats.Pages)
	}
}

// Package annotate rewrites a list of titles into the same list with each
// emphasized title turned into a markdown hyperlink, using a Searcher to
// discover the target URL per line.
package annotate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Lookup resolves a title to a URL, or "" when nothing was found.
// Satisfied by *search.Searcher.
type Lookup interface {
	Search(ctx context.Context, query string) string
}

var (
	leadingBullet = regexp.MustCompile(`^[ ]*-[ ]*`)
	emphasisSpan  = regexp.MustCompile(`[*]([^*]+)[*]`)
)

// ExtractTitle strips the decorative markup from a raw line so it can be
// used as a search query: the leading hyphen-bullet, then every asterisk,
// tilde, and HTML comment delimiter. Whitespace is left as-is.
func ExtractTitle(line string) string {
	title := leadingBullet.ReplaceAllString(line, "")
	title = strings.ReplaceAll(title, "*", "")
	title = strings.ReplaceAll(title, "~", "")
	title = strings.ReplaceAll(title, "<!--", "")
	title = strings.ReplaceAll(title, "-->", "")
	return title
}

// AddURL rewrites the first asterisk-delimited span in line into a markdown
// link wrapped in the same emphasis markers. Lines without such a span, and
// empty URLs, leave the line unchanged.
func AddURL(line, url string) string {
	if url == "" {
		return line
	}
	match := emphasisSpan.FindStringSubmatch(line)
	if match == nil {
		return line
	}
	repl := fmt.Sprintf("*[%s](%s)*", match[1], url)
	return emphasisSpan.ReplaceAllLiteralString(line, repl)
}

// Annotator runs the line-by-line pipeline: extract title, look it up,
// inject the URL, echo and write.
type Annotator struct {
	lookup      Lookup
	logger      *slog.Logger
	echo        io.Writer
	concurrency int
}

// New creates an Annotator. concurrency <= 1 processes lines sequentially;
// higher values look up independent titles in parallel while keeping output
// in input order.
func New(lookup Lookup, concurrency int, echo io.Writer, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	if echo == nil {
		echo = os.Stdout
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Annotator{
		lookup:      lookup,
		logger:      logger,
		echo:        echo,
		concurrency: concurrency,
	}
}

// Run reads inputPath, annotates every line, echoes each annotated line,
// and writes the result to outputPath.
func (a *Annotator) Run(ctx context.Context, inputPath, outputPath string) error {
	lines, err := readLines(inputPath)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}

	annotated := a.AnnotateLines(ctx, lines)

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	for _, line := range annotated {
		fmt.Fprintln(a.echo, line)
		if _, err := w.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// AnnotateLines maps each line through lookup+injection, preserving order.
func (a *Annotator) AnnotateLines(ctx context.Context, lines []string) []string {
	results := make([]string, len(lines))

	if a.concurrency <= 1 {
		for i, line := range lines {
			results[i] = a.annotate(ctx, line)
		}
		return results
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, line := range lines {
		g.Go(func() error {
			results[i] = a.annotate(gCtx, line)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Annotator) annotate(ctx context.Context, line string) string {
	url := a.lookup.Search(ctx, ExtractTitle(line))
	return AddURL(line, url)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

package annotate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

// stubLookup maps titles to URLs without any network access.
type stubLookup struct {
	urls map[string]string
}

func (s *stubLookup) Search(ctx context.Context, query string) string {
	return s.urls[query]
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"- *Some Title*", "Some Title"},
		{"  -  Plain Title", "Plain Title"},
		{"~Tilde Title~", "Tilde Title"},
		{"<!-- note --> Title", " note  Title"},
		{"No Decoration", "No Decoration"},
		{"- *A* and *B*", "A and B"},
	}

	for _, tt := range tests {
		if got := ExtractTitle(tt.in); got != tt.want {
			t.Errorf("ExtractTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddURL(t *testing.T) {
	tests := []struct {
		name string
		line string
		url  string
		want string
	}{
		{"basic", "- *Some Title*", "http://x/y", "- *[Some Title](http://x/y)*"},
		{"no span", "- Some Title", "http://x/y", "- Some Title"},
		{"empty url", "- *Some Title*", "", "- *Some Title*"},
		// Every span is replaced with the link built from the first span's title.
		{"multiple spans", "*A* then *B*", "http://x", "*[A](http://x)* then *[A](http://x)*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddURL(tt.line, tt.url); got != tt.want {
				t.Errorf("AddURL(%q, %q) = %q, want %q", tt.line, tt.url, got, tt.want)
			}
		})
	}
}

func TestAnnotateLines_Sequential(t *testing.T) {
	lookup := &stubLookup{urls: map[string]string{
		"First Book":  "http://shop/dp/AAA/",
		"Second Book": "http://shop/dp/BBB/",
	}}

	a := New(lookup, 1, &bytes.Buffer{}, nil)
	lines := []string{
		"- *First Book*",
		"- unknown line",
		"- *Second Book*",
	}

	got := a.AnnotateLines(context.Background(), lines)
	want := []string{
		"- *[First Book](http://shop/dp/AAA/)*",
		"- unknown line",
		"- *[Second Book](http://shop/dp/BBB/)*",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnnotateLines_ParallelPreservesOrder(t *testing.T) {
	lookup := &stubLookup{urls: map[string]string{
		"A": "http://x/a", "B": "http://x/b", "C": "http://x/c", "D": "http://x/d",
	}}

	a := New(lookup, 4, &bytes.Buffer{}, nil)
	lines := []string{"*A*", "*B*", "*C*", "*D*"}

	got := a.AnnotateLines(context.Background(), lines)
	want := []string{
		"*[A](http://x/a)*",
		"*[B](http://x/b)*",
		"*[C](http://x/c)*",
		"*[D](http://x/d)*",
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRun_WritesOutputAndEchoes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.txt")
	output := filepath.Join(dir, "out.txt")

	content := "- *Known*\n- plain\n"
	if err := os.WriteFile(input, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}

	lookup := &stubLookup{urls: map[string]string{"Known": "http://k"}}
	var echo bytes.Buffer
	a := New(lookup, 1, &echo, nil)

	if err := a.Run(context.Background(), input, output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOut := "- *[Known](http://k)*\n- plain\n"
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if string(got) != wantOut {
		t.Errorf("output file:\n got %q\nwant %q", string(got), wantOut)
	}
	if echo.String() != wantOut {
		t.Errorf("echo:\n got %q\nwant %q", echo.String(), wantOut)
	}
}

func TestRun_MissingInput(t *testing.T) {
	a := New(&stubLookup{}, 1, &bytes.Buffer{}, nil)
	if err := a.Run(context.Background(), "/nonexistent/in.txt", "/nonexistent/out.txt"); err == nil {
		t.Fatal("expected error for missing input file")
	}
}

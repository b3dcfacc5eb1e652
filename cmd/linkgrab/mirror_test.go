package main

import (
	"bytes"
	"testing"
)

func TestDeriveStartURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dir  string
		want string
	}{
		{"golang", "http://gen.lib.rus.ec/search.php?req=golang"},
		{"category theory", "http://gen.lib.rus.ec/search.php?req=category+theory"},
	}

	for _, tt := range tests {
		if got := deriveStartURL(tt.dir); got != tt.want {
			t.Errorf("deriveStartURL(%q) = %q, want %q", tt.dir, got, tt.want)
		}
	}
}

func TestMirrorCmd_Flags(t *testing.T) {
	t.Parallel()

	cmd := NewMirrorCmd()

	for _, name := range []string{"yes", "no", "open", "max-pages", "respect-robots", "report"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q", name)
		}
	}
	if cmd.Flags().ShorthandLookup("y") == nil {
		t.Error("expected -y shorthand")
	}
	if cmd.Flags().ShorthandLookup("n") == nil {
		t.Error("expected -n shorthand")
	}
	if cmd.Flags().ShorthandLookup("o") == nil {
		t.Error("expected -o shorthand")
	}
}

func TestMirrorCmd_ExclusiveRunFlags(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"mirror", "-y", "-n", "somedir"})

	if err := root.Execute(); err == nil {
		t.Error("expected -y and -n together to fail")
	}
}

func TestMirrorCmd_RequiresDirectory(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"mirror"})

	if err := root.Execute(); err == nil {
		t.Error("expected missing directory argument to fail")
	}
}

func TestMirrorCmd_RejectsUnknownReportFormat(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"mirror", "--report", "xml", "somedir"})

	if err := root.Execute(); err == nil {
		t.Error("expected unsupported report format to fail")
	}
}

// Package script materializes collected download entries into a resumable
// transfer script next to the target directory, and optionally runs it.
package script

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/epsil/linkgrab/internal/mirror"
)

// Variant is the platform flavor of the generated script.
type Variant struct {
	// FileName is the script's name inside the target directory.
	FileName string
	// Preamble is written before any transfer command.
	Preamble string
	// Executable marks whether the file needs an exec bit.
	Executable bool
	// Command launches the script from inside the target directory.
	Command []string
}

// ShellVariant emits a POSIX shell script that cds to its own directory, so
// it keeps working when launched from anywhere.
func ShellVariant() Variant {
	return Variant{
		FileName:   "run.sh",
		Preamble:   "#!/bin/sh\nDIR=\"$( cd \"$( dirname \"${BASH_SOURCE[0]}\" )\" && pwd )\"\ncd \"$DIR\"\n",
		Executable: true,
		Command:    []string{"sh", "run.sh"},
	}
}

// BatchVariant emits a Windows batch file.
func BatchVariant() Variant {
	return Variant{
		FileName:   "run.bat",
		Preamble:   "@echo off\n",
		Executable: false,
		Command:    []string{"cmd", "/C", "run.bat"},
	}
}

// VariantForOS picks the script flavor for a GOOS value.
func VariantForOS(goos string) Variant {
	if goos == "windows" {
		return BatchVariant()
	}
	return ShellVariant()
}

// TransferCommand renders the wget invocation for one entry: resumable,
// patient with slow mirrors, and named "<id> <label>.<ext>" so partial runs
// are easy to audit.
func TransferCommand(e mirror.Entry, label string) string {
	name := fmt.Sprintf("%s %s.%s", e.ID, label, e.Ext)
	return fmt.Sprintf("wget -c -w 60 -t inf -T 10 -O %q --referer %q %q",
		name, e.Referer, e.Link)
}

// Writer accumulates transfer commands into the script file, echoing each
// command as it is added.
type Writer struct {
	variant Variant
	dir     string
	label   string
	file    *os.File
	buf     *bufio.Writer
	echo    io.Writer
	count   int
}

// NewWriter creates the target directory if needed and opens the script file
// inside it, writing the variant's preamble. label names the downloads, by
// convention the directory's base name.
func NewWriter(dir string, variant Variant, echo io.Writer) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create target directory: %w", err)
	}
	path := filepath.Join(dir, variant.FileName)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create script: %w", err)
	}

	w := &Writer{
		variant: variant,
		dir:     dir,
		label:   filepath.Base(dir),
		file:    f,
		buf:     bufio.NewWriter(f),
		echo:    echo,
	}
	if echo == nil {
		w.echo = io.Discard
	}
	if _, err := w.buf.WriteString(variant.Preamble); err != nil {
		f.Close()
		return nil, fmt.Errorf("write preamble: %w", err)
	}
	return w, nil
}

// Path returns the script's location on disk.
func (w *Writer) Path() string {
	return filepath.Join(w.dir, w.variant.FileName)
}

// Count returns how many transfer commands have been written.
func (w *Writer) Count() int {
	return w.count
}

// Add appends the transfer command for one entry.
func (w *Writer) Add(e mirror.Entry) error {
	cmd := TransferCommand(e, w.label)
	fmt.Fprintln(w.echo, cmd)
	if _, err := w.buf.WriteString(cmd + "\n"); err != nil {
		return fmt.Errorf("write transfer command: %w", err)
	}
	w.count++
	return nil
}

// Close flushes the script and marks it executable when the variant needs it.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush script: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("close script: %w", err)
	}
	if w.variant.Executable {
		if err := os.Chmod(w.Path(), 0755); err != nil {
			return fmt.Errorf("chmod script: %w", err)
		}
	}
	return nil
}

// Mode decides whether the finished script gets executed.
type Mode int

const (
	// ModePrompt asks on stdin before running.
	ModePrompt Mode = iota
	// ModeAlways runs without asking.
	ModeAlways
	// ModeNever only writes the script.
	ModeNever
)

// Confirm applies the mode, reading a y/n answer from in when prompting.
// Anything other than an answer starting with "y" declines.
func Confirm(mode Mode, in io.Reader, out io.Writer) bool {
	switch mode {
	case ModeAlways:
		return true
	case ModeNever:
		return false
	}
	fmt.Fprint(out, "Run the download script now? [y/N] ")
	reader := bufio.NewReader(in)
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return strings.HasPrefix(answer, "y")
}

// Run executes the script synchronously from inside dir, streaming its output
// to stdout/stderr. The downloads resume on a later invocation thanks to
// wget's -c, so interrupting is safe.
func Run(ctx context.Context, dir string, variant Variant, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("running download script", "dir", dir, "script", variant.FileName)

	cmd := exec.CommandContext(ctx, variant.Command[0], variant.Command[1:]...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run download script: %w", err)
	}
	return nil
}

// Package main provides the entry point for the linkgrab CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkgrab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkgrab",
		Short: "Turn title lists into link lists",
		Long: `Linkgrab turns lists of titles into lists of links.

annotate rewrites a markdown title list so each emphasized title becomes a
hyperlink, discovered via keyword search with bounded retries.

mirror walks a book mirror's paginated results table and writes a resumable
wget download script into the target directory, optionally running it.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable verbose logging")
	pf.String("config", "", "Configuration file path (default: $HOME/.linkgrab.yaml)")
	pf.Int("metrics-port", 0, "Serve Prometheus metrics on this port (0 disables)")
	pf.String("audit", "", "Fetch audit DSN (sqlite://, postgres://, csv://, ndjson://)")
	pf.String("proxy-file", "", "File with one proxy URL per line, rotated per request")
	pf.String("fingerprint", "chrome", "TLS fingerprint profile (chrome, firefox, safari, go, random)")
	pf.Float64("rps", 0, "Maximum requests per second (0 disables rate limiting)")
	pf.Float64("jitter", 0.2, "Rate limit jitter as a fraction of the interval")
	pf.String("user-agent", "", "Fixed User-Agent header (default: rotating pool)")

	// Add subcommands
	cmd.AddCommand(NewAnnotateCmd())
	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

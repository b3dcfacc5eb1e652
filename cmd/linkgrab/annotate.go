package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epsil/linkgrab/internal/annotate"
	"github.com/epsil/linkgrab/internal/search"
)

// NewAnnotateCmd creates the annotate command.
func NewAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <input> <output>",
		Short: "Inject product links into a markdown title list",
		Long: `Annotate reads a text file of titles, one per line, looks each title up via
keyword search, and writes the same lines with every emphasized title turned
into a markdown hyperlink.

A line like

  - *The Go Programming Language*

becomes

  - *[The Go Programming Language](http://www.amazon.com/dp/0134190440/)*

Lines whose lookup finds nothing are passed through unchanged. Each search
retries up to --attempts times before giving up, because the endpoint answers
intermittently.

Examples:
  # Annotate a reading list
  linkgrab annotate books.md books-linked.md

  # Parallel lookups, fewer retries
  linkgrab annotate --concurrency 4 --attempts 10 books.md out.md`,
		Args: cobra.ExactArgs(2),
		RunE: runAnnotateCmd,
	}

	cmd.Flags().IntP("attempts", "a", search.DefaultAttempts,
		"Search attempts per title before giving up")
	cmd.Flags().IntP("concurrency", "c", 1,
		"Number of titles looked up in parallel (output order is preserved)")

	return cmd
}

// runAnnotateCmd executes the annotate command.
func runAnnotateCmd(cmd *cobra.Command, args []string) error {
	rt, err := newSession(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	defer rt.shutdown(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		rt.logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	attempts, err := cmd.Flags().GetInt("attempts")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}

	searcher := search.New(rt.fetcher, search.Amazon(), attempts, rt.logger)
	annotator := annotate.New(searcher, concurrency, cmd.OutOrStdout(), rt.logger)

	return annotator.Run(ctx, args[0], args[1])
}

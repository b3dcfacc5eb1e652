package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/epsil/linkgrab/internal/fetch"
	"github.com/epsil/linkgrab/internal/mirror"
	"github.com/epsil/linkgrab/internal/report"
	"github.com/epsil/linkgrab/internal/script"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror [-y|-n|-o] <directory> [start-url]",
		Short: "Scrape a book mirror's results into a download script",
		Long: `Mirror walks a book mirror's paginated results table and writes a resumable
wget download script into the target directory, one command per result row.
When the start URL is omitted it is derived from the directory name:

  http://gen.lib.rus.ec/search.php?req=<urlencoded directory>

After writing the script you are asked whether to run it. The downloads
resume on a later invocation thanks to wget's -c, so interrupting is safe.

Examples:
  # Scrape results for "category theory" into ./category theory/
  linkgrab mirror "category theory"

  # Write the script without running it
  linkgrab mirror -n "category theory"

  # Scrape an explicit results page
  linkgrab mirror books "http://gen.lib.rus.ec/search.php?req=golang"

  # Just open the computed search URL in a browser
  linkgrab mirror -o "category theory"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runMirrorCmd,
	}

	cmd.Flags().BoolP("yes", "y", false, "Run the download script without asking")
	cmd.Flags().BoolP("no", "n", false, "Write the download script but never run it")
	cmd.Flags().BoolP("open", "o", false, "Open the search URL in a browser instead of scraping")
	cmd.Flags().Int("max-pages", 0, "Stop after this many result pages (0 = unlimited)")
	cmd.Flags().Bool("respect-robots", false, "Honor the mirror's robots.txt")
	cmd.Flags().String("report", "", "Print a run summary in the given format (text or json)")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	runAlways, _ := flags.GetBool("yes")
	runNever, _ := flags.GetBool("no")
	openOnly, _ := flags.GetBool("open")
	if runAlways && runNever {
		return errors.New("-y and -n are mutually exclusive")
	}

	dir := args[0]
	startURL := deriveStartURL(dir)
	if len(args) == 2 {
		startURL = args[1]
	}

	if openOnly {
		return openURL(startURL)
	}

	reportFormat, _ := flags.GetString("report")
	if reportFormat != "" && reportFormat != "text" && reportFormat != "json" {
		return fmt.Errorf("unsupported report format %q (want text or json)", reportFormat)
	}

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

	cfg := mirror.DefaultConfig()
	cfg.MaxPages, _ = flags.GetInt("max-pages")

	var gate mirror.RobotsGate
	if respect, _ := flags.GetBool("respect-robots"); respect {
		gate = fetch.NewRobotsGate(rt.fetcher, rt.logger)
	}

	variant := script.VariantForOS(runtime.GOOS)
	writer, err := script.NewWriter(dir, variant, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	collector := mirror.New(rt.fetcher, cfg, gate, rt.logger)
	stats := collector.Collect(ctx, startURL, func(e mirror.Entry) error {
		return writer.Add(e)
	})

	if err := writer.Close(); err != nil {
		return err
	}

	rt.logger.Info("collection finished",
		"pages", stats.Pages,
		"entries", stats.Entries,
		"script", writer.Path(),
	)

	if reportFormat != "" {
		summary := report.Generate(rt.audit.Records(), stats)
		switch reportFormat {
		case "json":
			if err := report.WriteJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
		default:
			if err := report.WriteText(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
		}
	}

	if writer.Count() == 0 {
		rt.logger.Debug("no entries collected, skipping script run")
		return nil
	}

	mode := script.ModePrompt
	switch {
	case runAlways:
		mode = script.ModeAlways
	case runNever:
		mode = script.ModeNever
	}

	if script.Confirm(mode, cmd.InOrStdin(), cmd.OutOrStdout()) {
		return script.Run(ctx, dir, variant, rt.logger)
	}
	return nil
}

// deriveStartURL builds the mirror search URL from the target directory name.
func deriveStartURL(dir string) string {
	return fmt.Sprintf(mirror.SearchTemplate, url.QueryEscape(dir))
}

// openURL hands the URL to the platform's default handler.
func openURL(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("cmd", "/C", "start", "", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

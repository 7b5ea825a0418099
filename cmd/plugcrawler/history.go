package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/plugcrawler/internal/config"
	"github.com/nao1215/plugcrawler/internal/database"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is how many runs are listed without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List saved crawl runs",
		Long: `History lists the runs saved with 'plugcrawler crawl --history', newest
first. Given a run ID it prints that run's pages and trace.

Examples:
  # List recent runs of every crawler
  plugcrawler history

  # List the last five runs of one crawler
  plugcrawler history --name docs --limit 5

  # Show a single run
  plugcrawler history 3f2c9a1e-8d4b-4c1a-9e2f-5b7d0c6a1f3e`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("name", "n", "", "Only list runs of this crawler")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit, "Maximum number of runs to list (0 for all)")
	cmd.Flags().String("history-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	dbDir, err := cmd.Flags().GetString("history-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := commandContext(cmd)
	w := cmd.OutOrStdout()

	if len(args) == 1 {
		return showRun(ctx, w, db, args[0])
	}

	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	return listRuns(ctx, w, db, name, limit)
}

// listRuns prints a table of runs.
func listRuns(ctx context.Context, w io.Writer, db *database.History, name string, limit int) error {
	runs, err := db.ListRuns(ctx, name, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No saved runs found.")
		fmt.Fprintln(w, "\nUse 'plugcrawler crawl --history' to save a run.")
		return nil
	}

	fmt.Fprintf(w, "Saved runs (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-36s  %-16s  %-20s  %6s  %8s\n", "ID", "Crawler", "Started", "Pages", "Failures")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 94))
	for _, run := range runs {
		name := run.Name
		if run.Interrupted {
			name += "*"
		}
		fmt.Fprintf(w, "  %-36s  %-16s  %-20s  %6d  %8d\n",
			run.ID, name, run.StartedAt.Local().Format(time.DateTime), run.Pages, run.Failures)
	}
	fmt.Fprintln(w, "\n* interrupted before completion")
	fmt.Fprintln(w, "Use 'plugcrawler history <id>' to show a run.")
	return nil
}

// showRun prints one run with its pages and trace.
func showRun(ctx context.Context, w io.Writer, db *database.History, id string) error {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	pages, err := db.GetRunPages(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "  Crawler:     %s\n", run.Name)
	fmt.Fprintf(w, "  Seeds:       %s\n", strings.Join(run.Seeds, ", "))
	fmt.Fprintf(w, "  Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "  Duration:    %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Pages:       %d (%d failed)\n", run.Pages, run.Failures)
	if run.Interrupted {
		fmt.Fprintln(w, "  Interrupted: yes")
	}

	fmt.Fprintln(w, "\nPages:")
	for _, p := range pages {
		indent := strings.Repeat("  ", p.Depth)
		if p.Error != "" {
			fmt.Fprintf(w, "  %s%s  [error: %s]\n", indent, p.URL, p.Error)
			continue
		}
		fmt.Fprintf(w, "  %s%s  %s\n", indent, p.URL, p.Title)
	}

	if len(run.Results) > 0 {
		fmt.Fprintln(w, "\nTrace:")
		for _, line := range run.Results {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	return nil
}

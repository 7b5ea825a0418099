package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for plugcrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugcrawler",
		Short: "Concurrent web crawler with loadable page plugins",
		Long: `plugcrawler crawls websites from seed URLs, following links up to a
configurable depth, and runs plugins on every page it fetches.

Plugins are compiled in or discovered as executables in the plugin
directory, and a JSON manifest selects and configures them. Results can be
printed as text, JSON or Markdown, saved to a local history database, and
stored in Qdrant for semantic search.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .plugcrawler.yaml in current, home or config directory)")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewQueryCmd())
	cmd.AddCommand(NewPluginsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
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

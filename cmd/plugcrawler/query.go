package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nao1215/plugcrawler/internal/config"
	"github.com/nao1215/plugcrawler/internal/log"
	"github.com/nao1215/plugcrawler/internal/vector"
	"github.com/spf13/cobra"
)

// errNoQuery is returned when --query is empty.
var errNoQuery = errors.New("no query specified: use --query")

// NewQueryCmd creates the query command.
func NewQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Search stored crawl results by meaning",
		Long: `Query embeds the given text and searches the Qdrant collection that
'plugcrawler crawl --qdrant' writes to.

Examples:
  # Search the default collection
  plugcrawler query --query "pricing and plans"

  # Search a remote instance with an API key
  plugcrawler query -q "release notes" --qdrant-host qdrant.internal --qdrant-api-key $KEY`,
		Args: cobra.NoArgs,
		RunE: runQueryCmd,
	}

	cmd.Flags().StringP("query", "q", "", "Text to search for")
	cmd.Flags().IntP("limit", "k", vector.DefaultLimit, "Maximum number of results")
	addQdrantFlags(cmd)

	return cmd
}

// runQueryCmd executes the query command.
func runQueryCmd(cmd *cobra.Command, _ []string) error {
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return err
	}
	if query == "" {
		return errNoQuery
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	if err := readQdrantFlags(cmd, cfg); err != nil {
		return err
	}
	if err := applyConfigFile(cmd, cfg); err != nil {
		return err
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	store, err := newQdrantStore(cfg)
	if err != nil {
		return err
	}

	logger.Debug("searching qdrant", "endpoint", cfg.QdrantEndpoint(), "collection", store.Collection())
	hits, err := store.Search(commandContext(cmd), query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return printHits(cmd.OutOrStdout(), hits)
}

// printHits writes the search results in the order Qdrant ranked them.
func printHits(w io.Writer, hits []vector.Hit) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "No matching results found.")
		return err
	}

	if _, err := fmt.Fprintln(w, "Search results:"); err != nil {
		return err
	}
	for _, hit := range hits {
		payload, err := json.Marshal(hit.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		if _, err := fmt.Fprintf(w, "ID: %v, Score: %v\nPayload: %s\n", hit.ID, hit.Score, payload); err != nil {
			return err
		}
	}
	return nil
}

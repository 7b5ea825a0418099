package main

import (
	"fmt"

	"github.com/nao1215/plugcrawler/internal/config"
	"github.com/nao1215/plugcrawler/internal/vector"
	"github.com/spf13/cobra"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file path from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// applyConfigFile loads the YAML defaults into cfg. Flags the user set
// explicitly keep their values. A missing file is only an error when its
// path was given with --config.
func applyConfigFile(cmd *cobra.Command, cfg *config.Config) error {
	explicitPath := getConfigFlag(cmd)
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return nil
	}

	file, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	file.Apply(cfg, cmd.Flags().Changed)
	cfg.ConfigFilePath = path
	return nil
}

// addQdrantFlags registers the vector store flags shared by crawl and query.
func addQdrantFlags(cmd *cobra.Command) {
	cmd.Flags().String("qdrant-host", vector.DefaultHost, "Qdrant host")
	cmd.Flags().Int("qdrant-port", vector.DefaultPort, "Qdrant REST port")
	cmd.Flags().String("qdrant-collection", vector.DefaultCollection, "Qdrant collection name")
	cmd.Flags().String("qdrant-api-key", "", "Qdrant API key")
	cmd.Flags().String("embedding-url", vector.DefaultEmbeddingURL,
		"Base URL of the text embedding service")
}

// readQdrantFlags copies the vector store flags into cfg.
func readQdrantFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cfg.QdrantHost, err = cmd.Flags().GetString("qdrant-host"); err != nil {
		return err
	}
	if cfg.QdrantPort, err = cmd.Flags().GetInt("qdrant-port"); err != nil {
		return err
	}
	if cfg.QdrantCollection, err = cmd.Flags().GetString("qdrant-collection"); err != nil {
		return err
	}
	if cfg.QdrantAPIKey, err = cmd.Flags().GetString("qdrant-api-key"); err != nil {
		return err
	}
	if cfg.EmbeddingURL, err = cmd.Flags().GetString("embedding-url"); err != nil {
		return err
	}
	return nil
}

// newQdrantStore builds the vector store described by cfg.
func newQdrantStore(cfg *config.Config) (*vector.QdrantStore, error) {
	embedder := vector.NewHTTPEmbedder(cfg.EmbeddingURL)
	opts := []vector.QdrantOption{vector.WithCollection(cfg.QdrantCollection)}
	if cfg.QdrantAPIKey != "" {
		opts = append(opts, vector.WithAPIKey(cfg.QdrantAPIKey))
	}
	return vector.NewQdrantStore(cfg.QdrantEndpoint(), embedder, opts...)
}

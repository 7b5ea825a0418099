package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nao1215/plugcrawler/internal/config"
	"github.com/spf13/cobra"
)

//go:embed templates/plugcrawler.yaml templates/plugin_config.json
var templates embed.FS

const (
	configTemplatePath   = "templates/plugcrawler.yaml"
	manifestTemplatePath = "templates/plugin_config.json"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new plugcrawler configuration file",
		Long: `Initialize creates a new .plugcrawler.yaml configuration file in the
current directory, and optionally a plugin manifest.

The generated configuration documents every crawl, plugin, output, history
and Qdrant option with its default value. The manifest lists every built-in
plugin with its settings.

Examples:
  # Create .plugcrawler.yaml in current directory
  plugcrawler init

  # Create config file at a specific path
  plugcrawler init -o myconfig.yaml

  # Also write a plugin manifest to the default location
  plugcrawler init --manifest ~/.config/plugcrawler/plugin_config.json

  # Force overwrite existing files
  plugcrawler init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().String("manifest", "",
		"Also write a plugin manifest template to this path")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing files")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	manifestPath, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if err := writeTemplate(configTemplatePath, outputPath, force); err != nil {
		return err
	}
	fmt.Fprintf(w, "Created configuration file: %s\n", outputPath)

	if manifestPath != "" {
		if err := writeTemplate(manifestTemplatePath, manifestPath, force); err != nil {
			return err
		}
		fmt.Fprintf(w, "Created plugin manifest: %s\n", manifestPath)
	}

	fmt.Fprintln(w, "\nEdit these files to configure defaults such as:")
	fmt.Fprintln(w, "  - Crawl depth, politeness delay and per-host limits")
	fmt.Fprintln(w, "  - Which plugins run and their settings")
	fmt.Fprintln(w, "  - Output format, history and Qdrant storage")
	return nil
}

// writeTemplate copies an embedded template to path. An existing file is
// kept unless force is set.
func writeTemplate(name, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("file already exists: %s (use -f to overwrite)", path)
		}
	}

	content, err := templates.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/nao1215/plugcrawler/internal/config"
	"github.com/nao1215/plugcrawler/internal/extension"
	"github.com/nao1215/plugcrawler/internal/extension/builtin"
	"github.com/spf13/cobra"
)

// NewPluginsCmd creates the plugins command.
func NewPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List available plugins and their manifest status",
		Long: `Plugins lists the compiled-in plugins and the executables found in the
plugin directory, and shows whether the manifest enables each one.

A missing or empty manifest enables every plugin.

Examples:
  # List plugins using the default paths
  plugcrawler plugins

  # Check a project-local manifest
  plugcrawler plugins --manifest ./plugin_config.json --plugin-dir ./plugins`,
		Args: cobra.NoArgs,
		RunE: runPluginsCmd,
	}

	cmd.Flags().String("plugin-dir", config.DefaultPluginDir(), "Directory of executable plugins")
	cmd.Flags().String("manifest", config.DefaultManifestPath(), "Plugin manifest path")

	return cmd
}

// pluginRow is one line of the plugins listing.
type pluginRow struct {
	name       string
	source     extension.Source
	enabled    bool
	configured bool
}

// runPluginsCmd executes the plugins command.
func runPluginsCmd(cmd *cobra.Command, _ []string) error {
	dir, err := cmd.Flags().GetString("plugin-dir")
	if err != nil {
		return err
	}
	manifestPath, err := cmd.Flags().GetString("manifest")
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	manifest, err := extension.LoadManifest(manifestPath)
	switch {
	case errors.Is(err, extension.ErrManifestNotFound):
		fmt.Fprintf(w, "No manifest at %s; every plugin is enabled.\n\n", manifestPath)
	case err != nil:
		fmt.Fprintf(w, "Manifest unusable (%v); every plugin is enabled.\n\n", err)
	}

	rows, err := listPlugins(dir, cmd.Flags().Changed("plugin-dir"), manifest)
	if err != nil {
		return err
	}
	printPlugins(w, rows)
	return nil
}

// listPlugins collects the catalog and directory plugins in load order.
// Executables that share a name with a compiled-in plugin are left out,
// as Load skips them.
func listPlugins(dir string, dirRequired bool, manifest *extension.Manifest) ([]pluginRow, error) {
	var rows []pluginRow
	seen := make(map[string]bool)

	add := func(name string, source extension.Source) {
		_, configured := manifest.Settings(name)
		rows = append(rows, pluginRow{
			name:       name,
			source:     source,
			enabled:    manifest.Includes(name),
			configured: configured,
		})
		seen[name] = true
	}

	for _, name := range builtin.NewCatalog().Names() {
		add(name, extension.SourceBuiltin)
	}

	execs, err := extension.Discover(dir)
	if err != nil {
		if dirRequired || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", extension.ErrPluginDir, dir, err)
		}
		return rows, nil
	}
	for _, p := range execs {
		if seen[p.Name()] {
			continue
		}
		add(p.Name(), extension.SourceExec)
	}
	return rows, nil
}

func printPlugins(w io.Writer, rows []pluginRow) {
	fmt.Fprintf(w, "Plugins (%d):\n\n", len(rows))
	fmt.Fprintf(w, "  %-24s  %-8s  %-8s  %s\n", "Name", "Source", "Enabled", "Settings")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 56))
	for _, r := range rows {
		fmt.Fprintf(w, "  %-24s  %-8s  %-8s  %s\n", r.name, r.source, yesNo(r.enabled), yesNo(r.configured))
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

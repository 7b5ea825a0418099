package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/plugcrawler/internal/extension"
	"github.com/nao1215/plugcrawler/internal/extension/builtin"
)

func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0700); err != nil {
		t.Fatal(err)
	}
}

func TestListPlugins(t *testing.T) {
	t.Parallel()

	t.Run("nil manifest enables the catalog", func(t *testing.T) {
		t.Parallel()
		rows, err := listPlugins(filepath.Join(t.TempDir(), "absent"), false, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(rows) != len(builtin.NewCatalog().Names()) {
			t.Errorf("expected one row per built-in, got %d", len(rows))
		}
		for _, r := range rows {
			if !r.enabled || r.source != extension.SourceBuiltin {
				t.Errorf("expected enabled built-in, got %+v", r)
			}
		}
	})

	t.Run("executables follow the catalog and duplicates are dropped", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		writeExecutable(t, filepath.Join(dir, "wordcount.sh"))
		writeExecutable(t, filepath.Join(dir, builtin.NameHeading))

		m, err := extension.ParseManifest([]byte(`{"plugins":[
			{"name":"wordcount","enabled":true,"settings":{"min":2}},
			{"name":"HeadingExtractor","enabled":false}
		]}`))
		if err != nil {
			t.Fatal(err)
		}

		rows, err := listPlugins(dir, true, m)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		last := rows[len(rows)-1]
		if last.name != "wordcount" || last.source != extension.SourceExec || !last.enabled || !last.configured {
			t.Errorf("unexpected exec row %+v", last)
		}
		var headings int
		for _, r := range rows {
			if r.name == builtin.NameHeading {
				headings++
				if r.enabled {
					t.Error("expected HeadingExtractor to be disabled")
				}
			}
			if r.name == builtin.NameMetaTag && r.enabled {
				t.Error("expected unlisted plugin to be disabled by a non-empty manifest")
			}
		}
		if headings != 1 {
			t.Errorf("expected one HeadingExtractor row, got %d", headings)
		}
	})

	t.Run("explicit missing directory is an error", func(t *testing.T) {
		t.Parallel()
		_, err := listPlugins(filepath.Join(t.TempDir(), "absent"), true, nil)
		if !errors.Is(err, extension.ErrPluginDir) {
			t.Errorf("expected ErrPluginDir, got %v", err)
		}
	})
}

func TestRunPluginsCmd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, "plugin_config.json")
	if err := os.WriteFile(manifest, []byte(`{broken`), 0600); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runRoot(t, "plugins", "--manifest", manifest, "--plugin-dir", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Manifest unusable") {
		t.Errorf("expected unusable manifest notice, got:\n%s", stdout)
	}
	if !strings.Contains(stdout, "Plugins (12):") {
		t.Errorf("expected 12 plugins, got:\n%s", stdout)
	}
}

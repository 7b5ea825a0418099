package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	t.Run("prints version, commit and date", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&buf)
		cmd.SetArgs(nil)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"plugcrawler version ", "commit: ", "built: "} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q, got %q", want, out)
			}
		}
	})

	t.Run("fallbacks are never empty", func(t *testing.T) {
		t.Parallel()
		if getVersion() == "" || getCommit() == "" || getDate() == "" {
			t.Error("expected non-empty build information")
		}
	})
}

package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nao1215/plugcrawler/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *History {
	t.Helper()

	h, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// createTestOutput builds a run with a root, one fetched child and one
// failed child.
func createTestOutput(name string, started time.Time) *model.Output {
	root := model.NewPageResult("http://site.test/", 0)
	root.Title = "Home"
	root.ContentHash = model.ContentDigest("<html>home</html>")
	root.Extensions = []model.ExtensionOutput{
		{Name: "TextSummarizer", Value: "Welcome."},
		{Name: "Broken", Err: "boom"},
	}

	about := model.NewPageResult("http://site.test/about", 1)
	about.Title = "About"
	about.ContentHash = model.ContentDigest("<html>about</html>")

	missing := model.NewPageResult("http://site.test/missing", 1)
	missing.SetError(errors.New("unexpected status 404 Not Found for url: http://site.test/missing"))

	root.Children = []*model.PageResult{about, missing}
	return &model.Output{
		Name:       name,
		Seeds:      []string{"http://site.test"},
		Pages:      []*model.PageResult{root},
		Lines:      []string{"Crawler Name: " + name, "Starting URL: http://site.test/"},
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		h, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer h.Close()

		if _, err := os.Stat(filepath.Join(dbDir, DefaultFileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if h.Path() != filepath.Join(dbDir, DefaultFileName) {
			t.Errorf("unexpected path %s", h.Path())
		}
	})

	t.Run("missing database without create is ErrNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "absent"), Options{})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		h, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		if _, err := h.SaveRun(context.Background(), createTestOutput("docs", time.Now()), false); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		_ = h.Close()

		h, err = Open(dir, Options{EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer h.Close()

		runs, err := h.ListRuns(context.Background(), "", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after reopen, got %d", len(runs))
		}
	})
}

func TestSaveRun(t *testing.T) {
	t.Parallel()

	t.Run("stores the run and its pages", func(t *testing.T) {
		t.Parallel()
		h := setupTestDB(t)
		ctx := context.Background()

		started := time.Date(2026, 3, 4, 5, 6, 7, 123, time.UTC)
		out := createTestOutput("docs", started)
		id, err := h.SaveRun(ctx, out, true)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		if len(id) != 36 {
			t.Errorf("expected a UUID run ID, got %q", id)
		}

		run, err := h.GetRun(ctx, id)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if run.Name != "docs" || run.Pages != 3 || run.Failures != 1 || !run.Interrupted {
			t.Errorf("unexpected run: %+v", run)
		}
		if !run.StartedAt.Equal(started) {
			t.Errorf("expected start %v, got %v", started, run.StartedAt)
		}
		if !reflect.DeepEqual(run.Seeds, out.Seeds) || !reflect.DeepEqual(run.Results, out.Lines) {
			t.Errorf("expected seeds and results to round-trip, got %+v", run)
		}

		pages, err := h.GetRunPages(ctx, id)
		if err != nil {
			t.Fatalf("failed to get pages: %v", err)
		}
		wantURLs := []string{"http://site.test/", "http://site.test/about", "http://site.test/missing"}
		if len(pages) != len(wantURLs) {
			t.Fatalf("expected %d pages, got %d", len(wantURLs), len(pages))
		}
		for i, p := range pages {
			if p.URL != wantURLs[i] {
				t.Errorf("page %d: expected %s, got %s", i, wantURLs[i], p.URL)
			}
		}
		wantExt := []model.ExtensionOutput{
			{Name: "TextSummarizer", Value: "Welcome."},
			{Name: "Broken", Err: "boom"},
		}
		if !reflect.DeepEqual(pages[0].Extensions, wantExt) {
			t.Errorf("expected extensions %v, got %v", wantExt, pages[0].Extensions)
		}
		if pages[2].Error == "" || pages[2].ContentHash != "" {
			t.Errorf("expected the failed page to keep its error only, got %+v", pages[2])
		}
		if pages[1].Depth != 1 || pages[1].Title != "About" {
			t.Errorf("unexpected child page %+v", pages[1])
		}
	})

	t.Run("empty output is saved", func(t *testing.T) {
		t.Parallel()
		h := setupTestDB(t)

		id, err := h.SaveRun(context.Background(), &model.Output{Name: "empty"}, false)
		if err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		run, err := h.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if run.Pages != 0 || len(run.Seeds) != 0 || len(run.Results) != 0 {
			t.Errorf("unexpected run: %+v", run)
		}
	})
}

func TestGetRun(t *testing.T) {
	t.Parallel()
	h := setupTestDB(t)

	_, err := h.GetRun(context.Background(), "no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()
	h := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"docs", "blog", "docs"} {
		if _, err := h.SaveRun(ctx, createTestOutput(name, base.Add(time.Duration(i)*time.Hour)), false); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()
		runs, err := h.ListRuns(ctx, "", 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		var names []string
		for _, r := range runs {
			names = append(names, r.Name)
		}
		if want := []string{"docs", "blog", "docs"}; !reflect.DeepEqual(names, want) {
			t.Errorf("expected %v, got %v", want, names)
		}
		if !runs[0].StartedAt.After(runs[1].StartedAt) {
			t.Errorf("expected descending start times, got %v then %v", runs[0].StartedAt, runs[1].StartedAt)
		}
	})

	t.Run("filters by name and limit", func(t *testing.T) {
		t.Parallel()
		runs, err := h.ListRuns(ctx, "docs", 1)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].Name != "docs" {
			t.Fatalf("expected one docs run, got %+v", runs)
		}
		if !runs[0].StartedAt.Equal(base.Add(2 * time.Hour)) {
			t.Errorf("expected the latest docs run, got %v", runs[0].StartedAt)
		}
	})
}

func TestChangedSince(t *testing.T) {
	t.Parallel()
	h := setupTestDB(t)
	ctx := context.Background()

	home := model.ContentDigest("<html>home</html>")

	changed, err := h.ChangedSince(ctx, "http://site.test/", home)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected an unseen URL to count as changed")
	}

	if _, err := h.SaveRun(ctx, createTestOutput("docs", time.Now()), false); err != nil {
		t.Fatalf("failed to save run: %v", err)
	}

	changed, err = h.ChangedSince(ctx, "http://site.test/", home)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Error("expected identical content to be unchanged")
	}

	changed, err = h.ChangedSince(ctx, "http://site.test/", model.ContentDigest("<html>new</html>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected new content to count as changed")
	}

	// A failed visit never records a digest.
	changed, err = h.ChangedSince(ctx, "http://site.test/missing", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Error("expected a URL without a saved digest to count as changed")
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	for _, s := range []string{
		formatTimestamp(want),
		"2026-05-06T07:08:09Z",
		"2026-05-06 07:08:09",
	} {
		if got := parseTimestamp(s); !got.Equal(want) {
			t.Errorf("%s: expected %v, got %v", s, want, got)
		}
	}
	if got := parseTimestamp("not a time"); !got.IsZero() {
		t.Errorf("expected zero time, got %v", got)
	}
}

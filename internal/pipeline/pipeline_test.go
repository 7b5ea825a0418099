package pipeline

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/nao1215/plugcrawler/internal/model"
	"github.com/nao1215/plugcrawler/internal/report"
	"github.com/nao1215/plugcrawler/internal/vector"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, out *model.Output) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, out *model.Output) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, out)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func sampleOutput() *model.Output {
	child := &model.PageResult{URL: "http://test.local/a", Depth: 1, Title: "A", ContentHash: "aa"}
	failed := &model.PageResult{URL: "http://test.local/b", Depth: 1, Error: "boom"}
	root := &model.PageResult{
		URL: "http://test.local/", Title: "Home", ContentHash: "root",
		Children: []*model.PageResult{child, failed},
	}
	return &model.Output{
		Name:  "docs",
		Seeds: []string{"http://test.local/"},
		Pages: []*model.PageResult{root},
		Lines: []string{"Crawler Name: docs", "Starting URL: http://test.local/"},
	}
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()
		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.continueOnError {
			t.Error("expected continueOnError to default to false")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()
		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()
		var order []string
		record := func(name string) *mockStep {
			return &mockStep{name: name, doFunc: func(context.Context, *model.Output) error {
				order = append(order, name)
				return nil
			}}
		}
		p := New()
		p.AddStep(record("first"))
		p.AddSteps(record("second"), record("third"))

		if err := p.Execute(context.Background(), sampleOutput()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"first", "second", "third"}
		if !reflect.DeepEqual(order, want) {
			t.Errorf("expected %v, got %v", want, order)
		}
		if !reflect.DeepEqual(p.StepNames(), want) {
			t.Errorf("expected step names %v, got %v", want, p.StepNames())
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()
		errBoom := errors.New("boom")
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *model.Output) error { return errBoom }}
		after := &mockStep{name: "after"}

		p := New()
		p.AddSteps(failing, after)
		err := p.Execute(context.Background(), sampleOutput())
		if !errors.Is(err, errBoom) {
			t.Fatalf("expected errBoom, got %v", err)
		}
		var stepErr *StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "failing" {
			t.Errorf("expected StepError for 'failing', got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected later steps to be skipped")
		}
	})

	t.Run("continues and joins errors when configured", func(t *testing.T) {
		t.Parallel()
		errA := errors.New("a")
		errB := errors.New("b")
		p := New(WithContinueOnError(true))
		ok := &mockStep{name: "ok"}
		p.AddSteps(
			&mockStep{name: "a", doFunc: func(context.Context, *model.Output) error { return errA }},
			ok,
			&mockStep{name: "b", doFunc: func(context.Context, *model.Output) error { return errB }},
		)
		err := p.Execute(context.Background(), sampleOutput())
		if !errors.Is(err, errA) || !errors.Is(err, errB) {
			t.Errorf("expected both errors, got %v", err)
		}
		if ok.callCount != 1 {
			t.Errorf("expected middle step to run once, got %d", ok.callCount)
		}
	})

	t.Run("checks cancellation before each step", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		step := &mockStep{name: "never"}
		p := New(WithContinueOnError(true))
		p.AddStep(step)
		if err := p.Execute(ctx, sampleOutput()); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("expected step not to run")
		}
	})
}

func TestReportStep(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	step := NewReportStep(report.NewTextWriter(&buf))
	if step.Name() != "report" {
		t.Errorf("expected name 'report', got %q", step.Name())
	}
	if err := step.Do(context.Background(), sampleOutput()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Crawler Name: docs\nStarting URL: http://test.local/\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

type fakeRecorder struct {
	mu          sync.Mutex
	known       map[string]string
	compared    []string
	saved       int
	interrupted bool
	compareErr  error
	saveErr     error
}

func (f *fakeRecorder) ChangedSince(_ context.Context, url, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.compareErr != nil {
		return false, f.compareErr
	}
	f.compared = append(f.compared, url)
	prev, ok := f.known[url]
	return !ok || prev != hash, nil
}

func (f *fakeRecorder) SaveRun(_ context.Context, _ *model.Output, interrupted bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved++
	f.interrupted = interrupted
	return "run-1", nil
}

func TestHistoryStep(t *testing.T) {
	t.Parallel()

	t.Run("compares fetched pages and saves the run", func(t *testing.T) {
		t.Parallel()
		rec := &fakeRecorder{known: map[string]string{"http://test.local/": "root"}}
		step := NewHistoryStep(rec, WithInterrupted(true))

		if err := step.Do(context.Background(), sampleOutput()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"http://test.local/", "http://test.local/a"}
		if !reflect.DeepEqual(rec.compared, want) {
			t.Errorf("expected compared %v, got %v", want, rec.compared)
		}
		if rec.saved != 1 || !rec.interrupted {
			t.Errorf("expected one interrupted save, got saved=%d interrupted=%v", rec.saved, rec.interrupted)
		}
		if step.RunID() != "run-1" {
			t.Errorf("expected run ID 'run-1', got %q", step.RunID())
		}
	})

	t.Run("comparison failure skips the save", func(t *testing.T) {
		t.Parallel()
		errDB := errors.New("db down")
		rec := &fakeRecorder{compareErr: errDB}
		err := NewHistoryStep(rec).Do(context.Background(), sampleOutput())
		if !errors.Is(err, errDB) {
			t.Errorf("expected db error, got %v", err)
		}
		if rec.saved != 0 {
			t.Error("expected no save")
		}
	})

	t.Run("save failure is returned", func(t *testing.T) {
		t.Parallel()
		errDB := errors.New("disk full")
		rec := &fakeRecorder{saveErr: errDB}
		step := NewHistoryStep(rec)
		if err := step.Do(context.Background(), sampleOutput()); !errors.Is(err, errDB) {
			t.Errorf("expected save error, got %v", err)
		}
		if step.RunID() != "" {
			t.Errorf("expected empty run ID, got %q", step.RunID())
		}
	})
}

type fakeStore struct {
	texts []string
	err   error
}

func (f *fakeStore) Persist(_ context.Context, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeStore) Search(context.Context, string, int) ([]vector.Hit, error) {
	return nil, nil
}

func TestVectorStep(t *testing.T) {
	t.Parallel()

	t.Run("persists the trace text", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{}
		out := sampleOutput()
		if err := NewVectorStep(store, nil).Do(context.Background(), out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.texts) != 1 || store.texts[0] != out.Text() {
			t.Errorf("expected trace text to be persisted, got %v", store.texts)
		}
	})

	t.Run("store failure does not fail the step", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{err: errors.New("connection refused")}
		if err := NewVectorStep(store, nil).Do(context.Background(), sampleOutput()); err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
	})

	t.Run("empty trace is skipped", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{}
		if err := NewVectorStep(store, nil).Do(context.Background(), &model.Output{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(store.texts) != 0 {
			t.Error("expected nothing persisted")
		}
	})
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/plugcrawler/internal/vector"
)

// fakeVectorBackend serves both the embedding API and the Qdrant REST
// endpoints the store uses.
type fakeVectorBackend struct {
	mu      sync.Mutex
	stored  string
	apiKeys []string
}

func (f *fakeVectorBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	switch {
	case r.URL.Path == "/api/embedding/query-embedding":
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float32, vector.DefaultDimension)})
	case strings.HasSuffix(r.URL.Path, "/points/search"):
		if f.stored == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{
			map[string]any{"id": 1, "score": 0.5, "payload": map[string]any{"text": f.stored}},
		}})
	case strings.HasSuffix(r.URL.Path, "/points"):
		var body struct {
			Points []struct {
				Payload map[string]string `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Points) != 1 {
			http.Error(w, "bad upsert", http.StatusBadRequest)
			return
		}
		f.stored = body.Points[0].Payload["text"]
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodDelete:
		http.NotFound(w, r)
	default:
		_, _ = w.Write([]byte(`{"result":true}`))
	}
}

func (f *fakeVectorBackend) text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored
}

// hostPort splits a test server URL into the qdrant host and port flags.
func hostPort(t *testing.T, raw string) (string, string) {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u.Hostname(), u.Port()
}

func TestPrintHits(t *testing.T) {
	t.Parallel()

	t.Run("no hits", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := printHits(&buf, nil); err != nil {
			t.Fatal(err)
		}
		if buf.String() != "No matching results found.\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("hits with payload", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		hits := []vector.Hit{{ID: float64(1), Score: 0.75, Payload: map[string]any{"text": "hello"}}}
		if err := printHits(&buf, hits); err != nil {
			t.Fatal(err)
		}
		want := "Search results:\nID: 1, Score: 0.75\nPayload: {\"text\":\"hello\"}\n"
		if buf.String() != want {
			t.Errorf("expected %q, got %q", want, buf.String())
		}
	})
}

func TestRunQueryCmd(t *testing.T) {
	t.Run("requires a query", func(t *testing.T) {
		_, _, err := runRoot(t, "query")
		if !errors.Is(err, errNoQuery) {
			t.Errorf("expected errNoQuery, got %v", err)
		}
	})

	t.Run("finds the trace stored by a crawl", func(t *testing.T) {
		backend := &fakeVectorBackend{}
		vsrv := httptest.NewServer(backend)
		t.Cleanup(vsrv.Close)
		host, port := hostPort(t, vsrv.URL)
		site := newTestSite(t)

		qdrantFlags := []string{
			"--qdrant-host", host, "--qdrant-port", port,
			"--qdrant-api-key", "secret-key", "--embedding-url", vsrv.URL,
		}

		args := append([]string{"crawl", "-n", "site", "-u", site.URL, "--qdrant"}, qdrantFlags...)
		if _, _, err := runRoot(t, args...); err != nil {
			t.Fatalf("crawl failed: %v", err)
		}
		if !strings.HasPrefix(backend.text(), "Crawler Name: site\n") {
			t.Errorf("expected the trace to be stored, got %q", backend.text())
		}

		args = append([]string{"query", "-q", "about us"}, qdrantFlags...)
		stdout, _, err := runRoot(t, args...)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if !strings.HasPrefix(stdout, "Search results:\nID: 1, Score: 0.5\nPayload: ") {
			t.Errorf("unexpected query output %q", stdout)
		}

		backend.mu.Lock()
		defer backend.mu.Unlock()
		for _, key := range backend.apiKeys {
			if key != "" && key != "secret-key" {
				t.Errorf("unexpected api key %q", key)
			}
		}
	})

	t.Run("qdrant outage does not fail the crawl", func(t *testing.T) {
		site := newTestSite(t)
		_, _, err := runRoot(t, "crawl", "-n", "site", "-u", site.URL, "--qdrant",
			"--qdrant-host", "127.0.0.1", "--qdrant-port", "1", "--embedding-url", "http://127.0.0.1:1")
		if err != nil {
			t.Errorf("expected crawl to succeed, got %v", err)
		}
	})
}

package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
)

func TestHTTPFetcherGet(t *testing.T) {
	t.Parallel()

	t.Run("returns body of successful response", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html><title>Hello</title></html>"))
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(body, "<title>Hello</title>") {
			t.Errorf("unexpected body %q", body)
		}
	})

	t.Run("sends custom user agent", func(t *testing.T) {
		t.Parallel()

		got := make(chan string, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got <- r.Header.Get("User-Agent")
		}))
		defer server.Close()

		f := NewHTTPFetcher(time.Second, WithUserAgent("plugcrawler-test/1.0"))
		if _, err := f.Get(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ua := <-got; ua != "plugcrawler-test/1.0" {
			t.Errorf("expected custom user agent, got %q", ua)
		}
	})

	t.Run("non-2xx status returns StatusError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}))
		defer server.Close()

		_, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("expected StatusError, got %v", err)
		}
		if statusErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", statusErr.StatusCode)
		}
	})

	t.Run("decodes gzip bodies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte("gzipped content"))
		_ = gz.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(buf.Bytes())
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "gzipped content" {
			t.Errorf("expected decoded body, got %q", body)
		}
	})

	t.Run("decodes brotli bodies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		br := brotli.NewWriter(&buf)
		_, _ = br.Write([]byte("brotli content"))
		_ = br.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(buf.Bytes())
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "brotli content" {
			t.Errorf("expected decoded body, got %q", body)
		}
	})

	t.Run("converts declared charset to UTF-8", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "café" {
			t.Errorf("expected café, got %q", body)
		}
	})

	t.Run("keeps undeclared UTF-8 past the first kilobyte", func(t *testing.T) {
		t.Parallel()

		page := "<html><body><p>" + strings.Repeat("a", 2048) + "</p><p>日本語 café</p></body></html>"
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page))
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != page {
			t.Errorf("expected the UTF-8 text unchanged, got %q", body[len(body)-40:])
		}
	})

	t.Run("meta charset still converts", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(append([]byte(`<html><head><meta charset="iso-8859-1"></head><body>caf`), 0xe9))
		}))
		defer server.Close()

		body, err := NewHTTPFetcher(time.Second).Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasSuffix(body, "café") {
			t.Errorf("expected café, got %q", body)
		}
	})

	t.Run("rejects bodies over the limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer server.Close()

		_, err := NewHTTPFetcher(time.Second, WithMaxBodySize(10)).Get(context.Background(), server.URL)
		if !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}
	})

	t.Run("connection failure returns error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		addr := server.URL
		server.Close()

		if _, err := NewHTTPFetcher(time.Second).Get(context.Background(), addr); err == nil {
			t.Error("expected error for closed server")
		}
	})
}

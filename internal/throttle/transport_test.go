package throttle

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTransport(t *testing.T) {
	t.Parallel()

	t.Run("bounds simultaneous requests to one host", func(t *testing.T) {
		t.Parallel()

		var current, peak atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			n := current.Add(1)
			defer current.Add(-1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			_, _ = io.WriteString(w, "ok")
		}))
		defer server.Close()

		table := New(1)
		client := table.WrapClient(server.Client())

		var wg sync.WaitGroup
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp, err := client.Get(server.URL)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}()
		}
		wg.Wait()

		if peak.Load() != 1 {
			t.Errorf("expected peak of 1 request, got %d", peak.Load())
		}
		if n := table.InFlight(HostOf(server.URL)); n != 0 {
			t.Errorf("expected no permits in flight, got %d", n)
		}
	})

	t.Run("permit is held until the body is closed", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "body")
		}))
		defer server.Close()

		table := New(1)
		resp, err := table.WrapClient(server.Client()).Get(server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		host := HostOf(server.URL)
		if table.InFlight(host) != 1 {
			t.Errorf("expected the open response to hold a permit, got %d", table.InFlight(host))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := table.Acquire(ctx, host); err == nil {
			t.Error("expected the host to be busy while the body is open")
		}

		resp.Body.Close()
		resp.Body.Close()
		if table.InFlight(host) != 0 {
			t.Errorf("expected the permit to be released, got %d", table.InFlight(host))
		}
	})

	t.Run("failed round trip releases the permit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		table := New(1)
		if _, err := table.WrapClient(&http.Client{Timeout: time.Second}).Get(addr); err == nil {
			t.Fatal("expected a connection error")
		}
		if n := table.InFlight(HostOf(addr)); n != 0 {
			t.Errorf("expected no permits in flight, got %d", n)
		}
	})

	t.Run("nil table leaves the client alone", func(t *testing.T) {
		t.Parallel()

		var table *Table
		client := &http.Client{}
		if got := table.WrapClient(client); got != client {
			t.Error("expected the same client back")
		}
	})
}

package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("uses the given limit", func(t *testing.T) {
		t.Parallel()
		if got := New(5).Limit(); got != 5 {
			t.Errorf("expected limit 5, got %d", got)
		}
	})

	t.Run("non-positive limit falls back to default", func(t *testing.T) {
		t.Parallel()
		if got := New(0).Limit(); got != DefaultLimit {
			t.Errorf("expected limit %d, got %d", DefaultLimit, got)
		}
	})
}

func TestTableAcquire(t *testing.T) {
	t.Parallel()

	t.Run("never exceeds the limit for one host", func(t *testing.T) {
		t.Parallel()

		const limit = 2
		table := New(limit)

		var current, peak atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := table.Acquire(context.Background(), "a.example")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				p.Release()
			}()
		}
		wg.Wait()

		if peak.Load() > limit {
			t.Errorf("expected at most %d concurrent, got %d", limit, peak.Load())
		}
		if table.InFlight("a.example") != 0 {
			t.Errorf("expected no permits in flight, got %d", table.InFlight("a.example"))
		}
	})

	t.Run("other hosts are not blocked", func(t *testing.T) {
		t.Parallel()

		table := New(1)
		held, err := table.Acquire(context.Background(), "a.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer held.Release()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		other, err := table.Acquire(ctx, "b.example")
		if err != nil {
			t.Fatalf("expected b.example to be free, got %v", err)
		}
		other.Release()
	})

	t.Run("blocked acquire honors context", func(t *testing.T) {
		t.Parallel()

		table := New(1)
		held, err := table.Acquire(context.Background(), "a.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer held.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := table.Acquire(ctx, "a.example"); err == nil {
			t.Error("expected context error")
		}
	})

	t.Run("concurrent first access creates one limiter per host", func(t *testing.T) {
		t.Parallel()

		table := New(3)
		var wg sync.WaitGroup
		limiters := make([]*hostLimiter, 50)
		for i := range limiters {
			wg.Add(1)
			go func() {
				defer wg.Done()
				limiters[i] = table.limiter("same.example")
			}()
		}
		wg.Wait()

		for i, l := range limiters {
			if l != limiters[0] {
				t.Fatalf("limiter %d differs from the first", i)
			}
		}
		if hosts := table.Hosts(); len(hosts) != 1 {
			t.Errorf("expected one host, got %v", hosts)
		}
	})

	t.Run("double release is harmless", func(t *testing.T) {
		t.Parallel()

		table := New(1)
		p, err := table.Acquire(context.Background(), "a.example")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		p.Release()
		p.Release()
		if table.InFlight("a.example") != 0 {
			t.Errorf("expected 0 in flight, got %d", table.InFlight("a.example"))
		}
	})
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"http://Example.COM/path", "example.com"},
		{"https://example.com:8443/x", "example.com:8443"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := HostOf(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// Package throttle bounds the number of simultaneous requests per remote host.
//
// A Table is shared by every fetch task of a crawl run. Each host gets its own
// weighted semaphore the first time it is seen; hosts never block each other.
package throttle

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// DefaultLimit is the per-host concurrency used when a non-positive limit is given.
const DefaultLimit = 3

// Table maps host names to concurrency limiters.
type Table struct {
	limit int64

	mu       sync.Mutex
	hosts    map[string]*hostLimiter
	inFlight map[string]int
}

type hostLimiter struct {
	sem *semaphore.Weighted
}

// New creates a Table allowing limit in-flight requests per host.
func New(limit int) *Table {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Table{
		limit:    int64(limit),
		hosts:    make(map[string]*hostLimiter),
		inFlight: make(map[string]int),
	}
}

// Limit returns the per-host capacity.
func (t *Table) Limit() int {
	return int(t.limit)
}

// limiter returns the host's limiter, creating it under the table lock so
// concurrent first accesses share a single instance.
func (t *Table) limiter(host string) *hostLimiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.hosts[host]
	if !ok {
		l = &hostLimiter{sem: semaphore.NewWeighted(t.limit)}
		t.hosts[host] = l
	}
	return l
}

// Acquire blocks until a slot for host is free or ctx is done.
func (t *Table) Acquire(ctx context.Context, host string) (*Permit, error) {
	l := t.limiter(host)
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.inFlight[host]++
	t.mu.Unlock()

	return &Permit{table: t, host: host, limiter: l}, nil
}

// Hosts returns the hosts seen so far, sorted.
func (t *Table) Hosts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	hosts := make([]string, 0, len(t.hosts))
	for h := range t.hosts {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// InFlight returns the number of permits currently held for host.
func (t *Table) InFlight(host string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight[host]
}

// Permit is a held slot for one host. Release must be called exactly once.
type Permit struct {
	table   *Table
	host    string
	limiter *hostLimiter
	once    sync.Once
}

// Release frees the slot. Calling it more than once is a no-op.
func (p *Permit) Release() {
	p.once.Do(func() {
		p.table.mu.Lock()
		p.table.inFlight[p.host]--
		p.table.mu.Unlock()
		p.limiter.sem.Release(1)
	})
}

// HostOf returns the lower-cased host:port of rawURL, or rawURL itself when
// it cannot be parsed.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Host)
}

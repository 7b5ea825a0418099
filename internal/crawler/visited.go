package crawler

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// DefaultVisitedExact is how many URLs a VisitedSet stores exactly.
	DefaultVisitedExact = 1 << 20

	// visitedOverflowEstimate sizes the bloom filter that takes over once
	// the exact set is full.
	visitedOverflowEstimate = 4 << 20

	visitedFalsePositiveRate = 0.001
)

// VisitedSet records the URLs claimed within one run.
//
// Claim is a single atomic check-and-insert. The first exact URLs are kept
// in a map. Past that, claims are recorded only in a bloom filter, which
// bounds memory on very large crawls: a URL is still never claimed twice,
// but a new URL may occasionally be rejected as a false positive.
type VisitedSet struct {
	mu       sync.Mutex
	exact    int
	seen     map[string]struct{}
	overflow *bloom.BloomFilter
	spilled  int
}

// NewVisitedSet creates a set that stores up to exact URLs precisely.
// Zero means DefaultVisitedExact.
func NewVisitedSet(exact int) *VisitedSet {
	if exact <= 0 {
		exact = DefaultVisitedExact
	}
	return &VisitedSet{
		exact: exact,
		seen:  make(map[string]struct{}),
	}
}

// Claim inserts url and reports whether this call inserted it.
// Only the first claim of a URL returns true.
func (v *VisitedSet) Claim(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[url]; ok {
		return false
	}
	if len(v.seen) < v.exact {
		v.seen[url] = struct{}{}
		return true
	}
	if v.overflow == nil {
		v.overflow = bloom.NewWithEstimates(visitedOverflowEstimate, visitedFalsePositiveRate)
	}
	if v.overflow.TestAndAdd([]byte(url)) {
		return false
	}
	v.spilled++
	return true
}

// Len returns the number of claimed URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen) + v.spilled
}

package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/plugcrawler/internal/throttle"
)

const (
	// DefaultMaxRetries is the number of attempts per URL.
	DefaultMaxRetries = 3

	// DefaultBackoffUnit is the first backoff sleep; each later one doubles.
	DefaultBackoffUnit = time.Second
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier runs a Getter under the domain throttle with bounded retries.
//
// Each attempt holds the host permit only while it is in flight. The
// backoff sleep, and the post-success delay, happen after the permit is
// released so that a sleeping task never blocks other requests to its host.
type Retrier struct {
	getter      Getter
	table       *throttle.Table
	maxRetries  int
	delay       time.Duration
	backoffUnit time.Duration
	sleep       SleepFunc
	logger      *slog.Logger
}

// RetryOption configures a Retrier.
type RetryOption func(*Retrier)

// WithMaxRetries sets the attempt budget. 0 still makes a single attempt.
func WithMaxRetries(n int) RetryOption {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithDelay sets the pause taken once after every successful retrieval.
func WithDelay(d time.Duration) RetryOption {
	return func(r *Retrier) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithBackoffUnit sets the first backoff duration.
func WithBackoffUnit(d time.Duration) RetryOption {
	return func(r *Retrier) {
		if d > 0 {
			r.backoffUnit = d
		}
	}
}

// WithSleep replaces the sleep function, mainly for tests.
func WithSleep(fn SleepFunc) RetryOption {
	return func(r *Retrier) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithRetryLogger sets the logger used for attempt failures.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// NewRetrier wraps getter. A nil table disables per-host throttling.
func NewRetrier(getter Getter, table *throttle.Table, opts ...RetryOption) *Retrier {
	r := &Retrier{
		getter:      getter,
		table:       table,
		maxRetries:  DefaultMaxRetries,
		backoffUnit: DefaultBackoffUnit,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Attempts returns how many tries Fetch makes before giving up.
func (r *Retrier) Attempts() int {
	return max(r.maxRetries, 1)
}

// Fetch retrieves rawURL, retrying failures with backoff 1, 2, 4, ... units.
// It returns *FetchError or *RenderError once every attempt has failed.
func (r *Retrier) Fetch(ctx context.Context, rawURL string) (string, error) {
	attempts := r.Attempts()
	backoff := r.backoffUnit

	var last error
	made := 0
	for made < attempts {
		made++
		content, err := r.attempt(ctx, rawURL)
		if err == nil {
			if r.delay > 0 {
				_ = r.sleep(ctx, r.delay) //nolint:errcheck // content is already retrieved
			}
			return content, nil
		}

		last = err
		r.logger.Warn("fetch attempt failed",
			"url", rawURL,
			"attempt", made,
			"of", attempts,
			"error", err,
		)

		if ctx.Err() != nil {
			break
		}
		if err := r.sleep(ctx, backoff); err != nil {
			break
		}
		backoff *= 2
	}

	r.logger.Error("all attempts failed", "url", rawURL, "attempts", made)
	return "", exhausted(rawURL, made, last)
}

// attempt performs one retrieval while holding the host permit.
func (r *Retrier) attempt(ctx context.Context, rawURL string) (string, error) {
	if r.table != nil {
		permit, err := r.table.Acquire(ctx, throttle.HostOf(rawURL))
		if err != nil {
			return "", err
		}
		defer permit.Release()
	}
	return r.getter.Get(ctx, rawURL)
}

// exhausted builds the typed error for a URL whose attempts are used up.
func exhausted(rawURL string, attempts int, last error) error {
	var renderErr *RenderError
	if errors.As(last, &renderErr) {
		return &RenderError{URL: rawURL, Attempts: attempts, Err: renderErr.Err}
	}
	return &FetchError{URL: rawURL, Attempts: attempts, Err: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package model

import (
	"errors"
	"time"
)

// Request validation errors returned by CrawlRequest.Validate.
var (
	// ErrNoSeeds is returned when the request has no seed URL.
	ErrNoSeeds = errors.New("no seed URL specified")

	// ErrInvalidDepth is returned when the max depth is below 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidPerHost is returned when the per-host limit is below 1.
	ErrInvalidPerHost = errors.New("invalid per-host limit: must be at least 1")

	// ErrInvalidRetries is returned when max retries is negative.
	ErrInvalidRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidDelay is returned when the inter-request delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")
)

// CrawlRequest holds the parameters of a single crawl run.
// It is built once from CLI flags and never modified while the run is active.
type CrawlRequest struct {
	// Name is the crawler name printed in the output header.
	Name string

	// Seeds are the starting URLs, in the order they were given.
	Seeds []string

	// MaxDepth bounds link following. 1 fetches the seeds only.
	MaxDepth int

	// MaxPerHost is the number of simultaneous requests allowed per host.
	MaxPerHost int

	// MaxRetries is the number of attempts per URL. 0 still makes one attempt.
	MaxRetries int

	// Delay is slept once after each successful retrieval.
	Delay time.Duration

	// UserAgent overrides the User-Agent header when non-empty.
	UserAgent string

	// Render selects the headless browser instead of plain HTTP.
	Render bool

	// Concurrent fans out child fetches instead of walking them one at a time.
	Concurrent bool

	// ListLinks prints the raw hrefs of depth-1 pages.
	ListLinks bool

	// UsePlugins runs the loaded extensions on every fetched page.
	UsePlugins bool
}

// Validate checks the request and returns the first problem found.
func (r CrawlRequest) Validate() error {
	if len(r.Seeds) == 0 {
		return ErrNoSeeds
	}
	if r.MaxDepth < 1 {
		return ErrInvalidDepth
	}
	if r.MaxPerHost < 1 {
		return ErrInvalidPerHost
	}
	if r.MaxRetries < 0 {
		return ErrInvalidRetries
	}
	if r.Delay < 0 {
		return ErrInvalidDelay
	}
	return nil
}

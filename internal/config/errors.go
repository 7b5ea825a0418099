package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoName is returned when the crawler has no name.
	ErrNoName = errors.New("no crawler name specified: use --name")

	// ErrNoSeeds is returned when no seed URL was given.
	ErrNoSeeds = errors.New("no seed URL specified: use --url or pass URLs as arguments")

	// ErrInvalidSeed is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrInvalidDepth is returned when the depth is below 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidMaxPerDomain is returned when the per-domain limit is below 1.
	ErrInvalidMaxPerDomain = errors.New("invalid max per domain: must be at least 1")

	// ErrInvalidMaxRetries is returned when max retries is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRunTimeout is returned when the run timeout is negative.
	ErrInvalidRunTimeout = errors.New("invalid run timeout: must be non-negative")

	// ErrInvalidDelay is returned when the delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidQdrantPort is returned when the Qdrant port is out of range.
	ErrInvalidQdrantPort = errors.New("invalid qdrant port: must be between 1 and 65535")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)

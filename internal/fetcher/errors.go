package fetcher

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBody is returned when a response carries no body at all.
	ErrEmptyBody = errors.New("empty response body")

	// ErrBodyTooLarge is returned when a body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s for url: %s", e.Status, e.URL)
}

// FetchError is the final result of a URL whose every attempt failed.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v (gave up after %d attempts)", e.Err, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RenderError reports a headless browser failure. The Renderer returns it
// per attempt with Attempts unset; the Retrier returns it with the final count.
type RenderError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *RenderError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("render %s: %v (gave up after %d attempts)", e.URL, e.Err, e.Attempts)
	}
	return fmt.Sprintf("render %s: %v", e.URL, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

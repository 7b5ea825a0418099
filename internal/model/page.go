package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// NoTitle is recorded when a page has no usable <title>.
const NoTitle = "No title found"

// PageResult is the outcome of one URL within a run.
// A PageResult is written only by the task that claimed its URL, so the
// tree formed by Children needs no locking while the crawl is in flight.
type PageResult struct {
	// URL is the normalized absolute URL that was fetched.
	URL string `json:"url"`

	// Depth is the traversal level; seeds are at 0.
	Depth int `json:"depth"`

	// Title is the trimmed page title, or NoTitle.
	Title string `json:"title,omitempty"`

	// Extensions holds one entry per loaded plugin, in registry order.
	Extensions []ExtensionOutput `json:"extensions,omitempty"`

	// Err is the fetch or render error. Pages with an error have no
	// title, extensions or children.
	Err error `json:"-"`

	// Error mirrors Err for serialization.
	Error string `json:"error,omitempty"`

	// Links are the raw hrefs listed for depth-1 pages.
	Links []string `json:"links,omitempty"`

	// ContentHash is the BLAKE2b-256 digest of the fetched body.
	ContentHash string `json:"content_hash,omitempty"`

	// Children are the pages claimed from this page's links, sorted by URL.
	Children []*PageResult `json:"children,omitempty"`
}

// NewPageResult creates an empty result for url at the given level.
func NewPageResult(url string, depth int) *PageResult {
	return &PageResult{URL: url, Depth: depth}
}

// SetError records a fetch failure.
func (p *PageResult) SetError(err error) {
	p.Err = err
	if err != nil {
		p.Error = err.Error()
	}
}

// Failed reports whether the page could not be retrieved.
func (p *PageResult) Failed() bool {
	return p.Err != nil || p.Error != ""
}

// ContentDigest returns the hex BLAKE2b-256 digest of content.
func ContentDigest(content string) string {
	sum := blake2b.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ExtensionOutput is one plugin's result for one page.
// Exactly one of Value and Err is meaningful.
type ExtensionOutput struct {
	// Name is the plugin's registered name.
	Name string `json:"name"`

	// Value is whatever the plugin returned.
	Value any `json:"value,omitempty"`

	// Err is the failure message when the plugin returned an error or panicked.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the plugin failed on this page.
func (e ExtensionOutput) Failed() bool {
	return e.Err != ""
}

// FormatValue renders Value for trace output. Strings are printed as-is,
// everything else as compact JSON.
func (e ExtensionOutput) FormatValue() string {
	switch v := e.Value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	data, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Sprintf("%v", e.Value)
	}
	return string(data)
}

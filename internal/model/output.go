package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Output is the aggregate of a whole run.
// Pages holds one root per claimed seed in seed order, and Lines holds the
// flattened trace that the text and JSON sinks print.
type Output struct {
	// Name is the crawler name from the request.
	Name string `json:"name"`

	// Seeds are the seed URLs as given.
	Seeds []string `json:"seeds"`

	// Pages are the seed page trees.
	Pages []*PageResult `json:"pages"`

	// Lines is the ordered trace.
	Lines []string `json:"results"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// resultsDocument is the JSON shape of the results sink.
type resultsDocument struct {
	Results []string `json:"results"`
}

// Text joins the trace lines with newlines.
func (o *Output) Text() string {
	return strings.Join(o.Lines, "\n")
}

// JSON encodes the trace as {"results": [...]} with two-space indentation.
func (o *Output) JSON() ([]byte, error) {
	lines := o.Lines
	if lines == nil {
		lines = []string{}
	}
	return json.MarshalIndent(resultsDocument{Results: lines}, "", "  ")
}

// Walk visits every page in pre-order, seeds first.
func (o *Output) Walk(fn func(*PageResult)) {
	var visit func(*PageResult)
	visit = func(p *PageResult) {
		fn(p)
		for _, c := range p.Children {
			visit(c)
		}
	}
	for _, p := range o.Pages {
		visit(p)
	}
}

// Stats returns the number of pages visited and how many of them failed.
func (o *Output) Stats() (pages, failures int) {
	o.Walk(func(p *PageResult) {
		pages++
		if p.Failed() {
			failures++
		}
	})
	return pages, failures
}

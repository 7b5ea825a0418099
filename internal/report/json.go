package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/plugcrawler/internal/model"
)

// JSONWriter prints the run as JSON.
type JSONWriter struct {
	baseWriter

	indent string

	// full writes the whole Output including the page trees instead of
	// the results document.
	full bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets the indentation string. An empty string writes compact JSON.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = indent
	}
}

// WithFullTree writes the page trees and run timestamps alongside the
// results.
func WithFullTree() JSONWriterOption {
	return func(w *JSONWriter) {
		w.full = true
	}
}

// NewJSONWriter creates a JSONWriter with two-space indentation.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
		indent:     "  ",
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write prints the run followed by a trailing newline.
func (w *JSONWriter) Write(out *model.Output) (int, error) {
	var v any = resultsDocument{Results: nonNil(out.Lines)}
	if w.full {
		cp := *out
		cp.Lines = nonNil(out.Lines)
		v = &cp
	}

	var data []byte
	var err error
	if w.indent != "" {
		data, err = json.MarshalIndent(v, "", w.indent)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

type resultsDocument struct {
	Results []string `json:"results"`
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}

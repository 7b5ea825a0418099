package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/plugcrawler/internal/model"
)

// ErrUnknownFormat is returned by ParseFormat for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names an output sink.
type Format string

const (
	// FormatText prints the trace lines, one per line.
	FormatText Format = "text"
	// FormatJSON prints {"results": [...]}.
	FormatJSON Format = "json"
	// FormatMarkdown prints a Markdown report of the run.
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats in display order.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatMarkdown}
}

// ParseFormat maps a case-insensitive name to a Format. "md" is accepted
// for Markdown.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Writer is a result sink. Write serializes the whole run and returns the
// number of bytes written.
type Writer interface {
	Write(out *model.Output) (int, error)
}

// NewWriter returns the Writer for format f.
func NewWriter(f Format, output io.Writer) (Writer, error) {
	switch f {
	case FormatText, "":
		return NewTextWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// MultiWriter writes one run to several Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the run to every Writer and stops at the first error.
func (m *MultiWriter) Write(out *model.Output) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(out)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter holds the destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// OpenOutput creates or truncates the file at path with owner-only
// permissions, creating missing parent directories.
func OpenOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return f, nil
}

package report

import (
	"io"

	"github.com/nao1215/plugcrawler/internal/model"
)

// TextWriter prints the trace lines joined by newlines.
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that writes to output.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write prints the trace followed by a trailing newline.
func (w *TextWriter) Write(out *model.Output) (int, error) {
	if len(out.Lines) == 0 {
		return 0, nil
	}
	return io.WriteString(w.output, out.Text()+"\n")
}

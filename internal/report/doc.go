// Package report writes crawl output to its sinks.
//
// Every writer implements Writer and serializes one model.Output:
//   - TextWriter: the trace lines, one per line
//   - JSONWriter: {"results": [...]}, optionally with the full page trees
//   - MarkdownWriter: a summary report with the trace in a code block
//
// NewWriter selects a writer by Format, and OpenOutput prepares a file
// destination for --output.
package report

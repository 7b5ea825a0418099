package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/plugcrawler/internal/model"
)

// syntaxText is the info string for the trace code block.
const syntaxText = markdown.SyntaxHighlight("text")

// MarkdownWriter prints a Markdown report of a run: a summary table, the
// visited pages, plugin failures and the raw trace.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the run in Markdown format.
func (w *MarkdownWriter) Write(out *model.Output) (int, error) {
	md := markdown.NewMarkdown(w.output)

	pages, failures := out.Stats()
	w.writeHeader(md, out, pages, failures)
	w.writeSummary(md, pages, failures)
	w.writePages(md, out)
	w.writePluginFailures(md, out)
	w.writeTrace(md, out)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, out *model.Output, pages, failures int) {
	md.H1("Crawl Report: " + out.Name)
	md.PlainText("")

	rows := [][]string{
		{"Crawler", out.Name},
		{"Seeds", strconv.Itoa(len(out.Seeds))},
		{"Pages Visited", strconv.Itoa(pages)},
		{"Failures", strconv.Itoa(failures)},
	}
	if !out.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", out.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if !out.FinishedAt.IsZero() && !out.StartedAt.IsZero() {
		rows = append(rows, []string{"Duration", out.FinishedAt.Sub(out.StartedAt).Round(time.Millisecond).String()})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(out.Seeds) > 0 {
		md.H2("Seeds")
		md.PlainText("")
		seeds := make([]string, len(out.Seeds))
		for i, s := range out.Seeds {
			seeds[i] = "`" + s + "`"
		}
		md.BulletList(seeds...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, pages, failures int) {
	if pages == 0 {
		md.Note("No pages were visited.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Page Outcomes"),
		piechart.WithShowData(true),
	)
	if ok := pages - failures; ok > 0 {
		chart.LabelAndIntValue("Fetched", uint64(ok))
	}
	if failures > 0 {
		chart.LabelAndIntValue("Failed", uint64(failures))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	switch {
	case failures == pages:
		md.Cautionf("Every page failed to load (%d of %d).", failures, pages)
	case failures > 0:
		md.Warningf("%d of %d page(s) failed to load.", failures, pages)
	default:
		md.Tip("All pages loaded successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, out *model.Output) {
	md.H2("Pages")
	md.PlainText("")

	var rows [][]string
	out.Walk(func(p *model.PageResult) {
		status := "ok"
		title := p.Title
		if p.Failed() {
			status = truncateString(p.Error, 60)
			title = "-"
		}
		rows = append(rows, []string{
			truncateString(p.URL, 60),
			strconv.Itoa(p.Depth),
			escapeCell(truncateString(title, 50)),
			escapeCell(status),
		})
	})
	if len(rows) == 0 {
		md.PlainText("No pages visited.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Title", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePluginFailures(md *markdown.Markdown, out *model.Output) {
	var rows [][]string
	out.Walk(func(p *model.PageResult) {
		for _, ext := range p.Extensions {
			if ext.Failed() {
				rows = append(rows, []string{
					ext.Name,
					truncateString(p.URL, 60),
					escapeCell(truncateString(ext.Err, 60)),
				})
			}
		}
	})
	if len(rows) == 0 {
		return
	}

	md.H2("Plugin Failures")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Plugin", "URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeTrace(md *markdown.Markdown, out *model.Output) {
	md.H2("Trace")
	md.PlainText("")
	md.CodeBlocks(syntaxText, out.Text())
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [plugcrawler](https://github.com/nao1215/plugcrawler)*")
}

// escapeCell keeps table cells on one row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

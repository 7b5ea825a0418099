package crawler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/plugcrawler/internal/fetcher"
	"github.com/nao1215/plugcrawler/internal/model"
)

// indentUnit is the indentation added per traversal level.
const indentUnit = "    "

// Trace flattens a run into its ordered output lines.
func Trace(out *model.Output, listLinks bool) []string {
	lines := []string{"Crawler Name: " + out.Name}
	for _, root := range out.Pages {
		lines = append(lines, "Starting URL: "+root.URL)
		lines = appendPage(lines, root, listLinks)
	}
	return lines
}

// appendPage writes the lines of p and its subtree in pre-order.
func appendPage(lines []string, p *model.PageResult, listLinks bool) []string {
	indent := strings.Repeat(indentUnit, p.Depth)
	lines = append(lines, indent+"URL: "+p.URL)

	if p.Failed() {
		return append(lines, indent+errorLine(p))
	}

	for _, ext := range p.Extensions {
		if ext.Failed() {
			lines = append(lines, fmt.Sprintf("%sPlugin %s error: %s", indent, ext.Name, ext.Err))
		} else {
			lines = append(lines, fmt.Sprintf("%sPlugin %s output: %s", indent, ext.Name, ext.FormatValue()))
		}
	}

	title := p.Title
	if title == "" {
		title = model.NoTitle
	}
	lines = append(lines, indent+"Title: "+title)

	if listLinks && p.Depth == 0 {
		if len(p.Links) == 0 {
			lines = append(lines, fmt.Sprintf("No links found on the page for %s.", p.URL))
		} else {
			lines = append(lines, fmt.Sprintf("Links found on the page for %s:", p.URL))
			lines = append(lines, p.Links...)
		}
	}

	for _, child := range p.Children {
		lines = appendPage(lines, child, listLinks)
	}
	return lines
}

func errorLine(p *model.PageResult) string {
	msg := p.Error
	if p.Err != nil {
		msg = p.Err.Error()
	}
	var renderErr *fetcher.RenderError
	if errors.As(p.Err, &renderErr) {
		return "Error rendering URL: " + msg
	}
	return "Error fetching URL: " + msg
}

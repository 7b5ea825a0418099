package builtin

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/nao1215/plugcrawler/internal/extension"
)

// Plugin names as they appear in the manifest and in crawl output.
const (
	NameMetaTag     = "MetaTagExtractor"
	NameHeading     = "HeadingExtractor"
	NameImage       = "ImageExtractor"
	NameKeyword     = "KeywordExtractor"
	NameCategorizer = "ContentCategorizer"
	NameSummarizer  = "TextSummarizer"
	NameEnricher    = "ContentEnricher"
	NameConfig      = "ConfigurablePlugin"
	NameVisual      = "VisualAnalyzer"
	NameExif        = "ExifExtractor"
	NameContact     = "ContactExtractor"
	NameTracker     = "TrackerExtractor"
)

var factories = []struct {
	name    string
	factory extension.Factory
}{
	{NameMetaTag, func() (extension.Plugin, error) { return NewMetaTagExtractor(), nil }},
	{NameHeading, func() (extension.Plugin, error) { return NewHeadingExtractor(), nil }},
	{NameImage, func() (extension.Plugin, error) { return NewImageExtractor(), nil }},
	{NameKeyword, func() (extension.Plugin, error) { return NewKeywordExtractor(), nil }},
	{NameCategorizer, func() (extension.Plugin, error) { return NewContentCategorizer(), nil }},
	{NameSummarizer, func() (extension.Plugin, error) { return NewTextSummarizer(), nil }},
	{NameEnricher, func() (extension.Plugin, error) { return NewContentEnricher(), nil }},
	{NameConfig, func() (extension.Plugin, error) { return NewConfigurablePlugin(), nil }},
	{NameVisual, func() (extension.Plugin, error) { return NewVisualAnalyzer(), nil }},
	{NameExif, func() (extension.Plugin, error) { return NewExifExtractor(), nil }},
	{NameContact, func() (extension.Plugin, error) { return NewContactExtractor(), nil }},
	{NameTracker, func() (extension.Plugin, error) { return NewTrackerExtractor(), nil }},
}

// Register adds every built-in plugin to cat.
func Register(cat *extension.Catalog) error {
	for _, f := range factories {
		if err := cat.Register(f.name, f.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a catalog holding only the built-in plugins.
func NewCatalog() *extension.Catalog {
	cat := extension.NewCatalog()
	for _, f := range factories {
		cat.MustRegister(f.name, f.factory)
	}
	return cat
}

// textPolicy strips every tag. Script, style and title contents are dropped.
var textPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// visibleText returns the page text with whitespace collapsed to single spaces.
func visibleText(content string) string {
	text := html.UnescapeString(textPolicy.Sanitize(content))
	return strings.Join(strings.Fields(text), " ")
}

func parseDocument(content string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(content))
}

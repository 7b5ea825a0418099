package builtin

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MetaTagExtractor maps meta tag names (or properties) to their content.
type MetaTagExtractor struct{}

// NewMetaTagExtractor creates a MetaTagExtractor.
func NewMetaTagExtractor() *MetaTagExtractor { return &MetaTagExtractor{} }

// Name returns the plugin name.
func (*MetaTagExtractor) Name() string { return NameMetaTag }

// Process collects meta tags that have both a key and content.
func (*MetaTagExtractor) Process(_ context.Context, content, _ string) (any, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("name")
		if key == "" {
			key, _ = s.Attr("property")
		}
		value, _ := s.Attr("content")
		if key != "" && value != "" {
			meta[key] = value
		}
	})
	return meta, nil
}

// HeadingExtractor lists the h1, h2 and h3 texts of a page.
type HeadingExtractor struct{}

// NewHeadingExtractor creates a HeadingExtractor.
func NewHeadingExtractor() *HeadingExtractor { return &HeadingExtractor{} }

// Name returns the plugin name.
func (*HeadingExtractor) Name() string { return NameHeading }

// Process returns {"h1": [...], "h2": [...], "h3": [...]}. Empty headings
// are skipped; every level is present even when it has no entries.
func (*HeadingExtractor) Process(_ context.Context, content, _ string) (any, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}

	headings := make(map[string][]string, 3)
	for _, level := range []string{"h1", "h2", "h3"} {
		texts := []string{}
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); text != "" {
				texts = append(texts, text)
			}
		})
		headings[level] = texts
	}
	return headings, nil
}

// Image is one img element.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// ImageExtractor lists the img elements that have a src.
type ImageExtractor struct{}

// NewImageExtractor creates an ImageExtractor.
func NewImageExtractor() *ImageExtractor { return &ImageExtractor{} }

// Name returns the plugin name.
func (*ImageExtractor) Name() string { return NameImage }

// Process returns the images in document order. Sources are left as written.
func (*ImageExtractor) Process(_ context.Context, content, _ string) (any, error) {
	doc, err := parseDocument(content)
	if err != nil {
		return nil, err
	}

	images := []Image{}
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		alt, _ := s.Attr("alt")
		images = append(images, Image{Src: src, Alt: alt})
	})
	return images, nil
}

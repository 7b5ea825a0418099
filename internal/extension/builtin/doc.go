// Package builtin provides the compiled-in plugins.
//
// Markup plugins (MetaTagExtractor, HeadingExtractor, ImageExtractor) query
// the DOM with goquery. Text plugins (KeywordExtractor, ContentCategorizer,
// TextSummarizer, ContentEnricher) work on the visible text of the page as
// produced by a strict bluemonday policy. Image plugins (VisualAnalyzer,
// ExifExtractor) fetch the images referenced by the page and accept the
// crawler's HTTP client through extension.HTTPClientSetter. ContactExtractor
// and TrackerExtractor scan the raw markup, so scripts and link targets count.
package builtin

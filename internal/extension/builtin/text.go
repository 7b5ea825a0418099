package builtin

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/plugcrawler/internal/extension"
)

// DefaultTopN is the number of keywords KeywordExtractor returns.
const DefaultTopN = 5

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {}, "all": {},
	"any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {}, "our": {}, "out": {},
	"day": {}, "get": {}, "has": {}, "him": {}, "his": {}, "how": {}, "man": {}, "new": {},
	"now": {}, "old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "this": {}, "that": {},
	"with": {},
}

// lowerText is the page text folded to lower case.
func lowerText(content string) string {
	return cases.Lower(language.English).String(visibleText(content))
}

// KeywordExtractor returns the most frequent words of a page.
type KeywordExtractor struct {
	topN int
}

// NewKeywordExtractor creates a KeywordExtractor returning DefaultTopN words.
func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{topN: DefaultTopN}
}

// Name returns the plugin name.
func (*KeywordExtractor) Name() string { return NameKeyword }

// Configure reads "top_n".
func (k *KeywordExtractor) Configure(s extension.Settings) error {
	k.topN = s.Int("top_n", DefaultTopN)
	if k.topN < 0 {
		k.topN = 0
	}
	return nil
}

// Process counts words of three or more letters, ignoring stopwords.
// Equal counts are ordered alphabetically.
func (k *KeywordExtractor) Process(_ context.Context, content, _ string) (any, error) {
	counts := make(map[string]int)
	for _, w := range wordPattern.FindAllString(lowerText(content), -1) {
		if _, stop := stopwords[w]; !stop {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > k.topN {
		words = words[:k.topN]
	}
	return words, nil
}

// Uncategorized is reported when no topic keyword occurs.
const Uncategorized = "Uncategorized"

type topic struct {
	key      string
	patterns []*regexp.Regexp
}

// topics are scored in this order; the first best score wins.
var topics = func() []topic {
	table := []struct {
		key      string
		keywords []string
	}{
		{"sports", []string{"sport", "game", "team", "player", "match"}},
		{"politics", []string{"election", "government", "policy", "vote", "senate"}},
		{"technology", []string{"tech", "software", "hardware", "computer", "internet"}},
		{"entertainment", []string{"movie", "music", "concert", "television", "festival"}},
	}
	out := make([]topic, 0, len(table))
	for _, t := range table {
		tp := topic{key: t.key}
		for _, kw := range t.keywords {
			tp.patterns = append(tp.patterns, regexp.MustCompile(`\b`+kw+`\b`))
		}
		out = append(out, tp)
	}
	return out
}()

// ContentCategorizer assigns a page to one topic by keyword counts.
type ContentCategorizer struct{}

// NewContentCategorizer creates a ContentCategorizer.
func NewContentCategorizer() *ContentCategorizer { return &ContentCategorizer{} }

// Name returns the plugin name.
func (*ContentCategorizer) Name() string { return NameCategorizer }

// Process returns the topic name, or Uncategorized.
func (*ContentCategorizer) Process(_ context.Context, content, _ string) (any, error) {
	text := lowerText(content)

	best, bestScore := "", 0
	for _, t := range topics {
		score := 0
		for _, p := range t.patterns {
			score += len(p.FindAllStringIndex(text, -1))
		}
		if score > bestScore {
			best, bestScore = t.key, score
		}
	}
	if bestScore == 0 {
		return Uncategorized, nil
	}
	// Casers carry state, so one is made per call.
	return cases.Title(language.English).String(best), nil
}

// DefaultSentenceCount is the summary length of TextSummarizer.
const DefaultSentenceCount = 2

// TextSummarizer returns the first sentences of a page.
type TextSummarizer struct {
	sentenceCount int
}

// NewTextSummarizer creates a TextSummarizer.
func NewTextSummarizer() *TextSummarizer {
	return &TextSummarizer{sentenceCount: DefaultSentenceCount}
}

// Name returns the plugin name.
func (*TextSummarizer) Name() string { return NameSummarizer }

// Configure reads "sentence_count".
func (t *TextSummarizer) Configure(s extension.Settings) error {
	t.sentenceCount = s.Int("sentence_count", DefaultSentenceCount)
	return nil
}

// Process returns the first sentences joined by a space. A page with
// fewer sentences than requested is returned whole.
func (t *TextSummarizer) Process(_ context.Context, content, _ string) (any, error) {
	text := visibleText(content)
	sentences := splitSentences(text)
	if t.sentenceCount <= 0 || len(sentences) < t.sentenceCount {
		return text, nil
	}
	return strings.Join(sentences[:t.sentenceCount], " "), nil
}

// splitSentences cuts after '.', '!' or '?' when followed by a space.
// Input is expected to have collapsed whitespace.
func splitSentences(text string) []string {
	if text == "" {
		return []string{""}
	}
	var sentences []string
	start := 0
	for i := 0; i < len(text)-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if text[i+1] == ' ' {
				sentences = append(sentences, text[start:i+1])
				start = i + 2
				i++
			}
		}
	}
	return append(sentences, text[start:])
}

// Enricher defaults.
const (
	DefaultEnrichmentLevel = 1
	DefaultAppendText      = " [enriched]"
	DefaultAPIEndpoint     = "http://dummyapi"
	DefaultAPIKey          = "dummy_key"
)

// ContentEnricher appends a marker to the page text, level times.
// The api settings are stored for enrichment backends but not called.
type ContentEnricher struct {
	level       int
	appendText  string
	apiEndpoint string
	apiKey      string
}

// NewContentEnricher creates a ContentEnricher with default settings.
func NewContentEnricher() *ContentEnricher {
	return &ContentEnricher{
		level:       DefaultEnrichmentLevel,
		appendText:  DefaultAppendText,
		apiEndpoint: DefaultAPIEndpoint,
		apiKey:      DefaultAPIKey,
	}
}

// Name returns the plugin name.
func (*ContentEnricher) Name() string { return NameEnricher }

// Configure reads enrichment.level, enrichment.append_text, api.endpoint
// and api.key. Missing keys revert to their defaults.
func (e *ContentEnricher) Configure(s extension.Settings) error {
	enrichment := s.Sub("enrichment")
	e.level = enrichment.Int("level", DefaultEnrichmentLevel)
	e.appendText = enrichment.String("append_text", DefaultAppendText)

	api := s.Sub("api")
	e.apiEndpoint = api.String("endpoint", DefaultAPIEndpoint)
	e.apiKey = api.String("key", DefaultAPIKey)
	return nil
}

// APIEndpoint returns the configured enrichment endpoint.
func (e *ContentEnricher) APIEndpoint() string { return e.apiEndpoint }

// APIKey returns the configured enrichment key.
func (e *ContentEnricher) APIKey() string { return e.apiKey }

// Process returns the enriched text.
func (e *ContentEnricher) Process(_ context.Context, content, _ string) (any, error) {
	level := max(e.level, 0)
	return visibleText(content) + strings.Repeat(e.appendText, level), nil
}

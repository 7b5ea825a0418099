package builtin

import (
	"context"
	"regexp"
	"sort"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// profilePatterns capture the account name of social profile links.
var profilePatterns = map[string][]*regexp.Regexp{
	"twitter": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?(?:twitter\.com|x\.com)/([A-Za-z0-9_]{1,15})(?:/|$|\?|"|')`),
	},
	"github": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?github\.com/([A-Za-z0-9_-]+)`),
	},
	"linkedin": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/in/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?linkedin\.com/company/([A-Za-z0-9_-]+)`),
	},
	"facebook": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?facebook\.com/([A-Za-z0-9.]+)`),
	},
	"instagram": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?instagram\.com/([A-Za-z0-9_.]+)`),
	},
	"youtube": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/(?:channel|c|user)/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`(?i)https?://(?:www\.)?youtube\.com/@([A-Za-z0-9_-]+)`),
	},
	"telegram": {
		regexp.MustCompile(`(?i)https?://(?:www\.)?(?:t|telegram)\.me/([A-Za-z0-9_]+)`),
	},
}

// trackerPatterns match analytics and advertising account IDs. When a
// pattern has a capture group, the group is the ID.
var trackerPatterns = map[string]*regexp.Regexp{
	"google_analytics_ua":  regexp.MustCompile(`UA-\d{4,10}-\d{1,4}`),
	"google_analytics_ga4": regexp.MustCompile(`\bG-[A-Z0-9]{10,12}\b`),
	"google_tag_manager":   regexp.MustCompile(`GTM-[A-Z0-9]{6,8}`),
	"google_adsense":       regexp.MustCompile(`ca-pub-\d{16}`),
	"facebook_pixel":       regexp.MustCompile(`fbq\s*\(\s*['"]init['"]\s*,\s*['"](\d{15,16})['"]`),
	"yandex_metrica":       regexp.MustCompile(`ym\s*\(\s*(\d{8,9})`),
	"matomo":               regexp.MustCompile(`_paq\.push\s*\(\s*\[\s*['"]setSiteId['"]\s*,\s*['"]?(\d+)['"]?\s*\]`),
	"hotjar":               regexp.MustCompile(`hjid\s*:\s*(\d{6,7})`),
}

// ContactExtractor lists the email addresses and social profiles a page
// mentions, including those only present in the markup.
type ContactExtractor struct{}

// NewContactExtractor creates a ContactExtractor.
func NewContactExtractor() *ContactExtractor { return &ContactExtractor{} }

// Name returns the plugin name.
func (*ContactExtractor) Name() string { return NameContact }

// Process returns {"emails": [...], "<platform>": [...]} with only the
// non-empty keys. Values are deduplicated and sorted.
func (*ContactExtractor) Process(_ context.Context, content, _ string) (any, error) {
	found := make(map[string][]string)

	emails := make(map[string]struct{})
	for _, m := range emailPattern.FindAllString(content, -1) {
		emails[strings.ToLower(m)] = struct{}{}
	}
	if len(emails) > 0 {
		found["emails"] = sortedKeys(emails)
	}

	for platform, patterns := range profilePatterns {
		accounts := make(map[string]struct{})
		for _, p := range patterns {
			for _, m := range p.FindAllStringSubmatch(content, -1) {
				accounts[m[1]] = struct{}{}
			}
		}
		if len(accounts) > 0 {
			found[platform] = sortedKeys(accounts)
		}
	}
	return found, nil
}

// TrackerExtractor reports analytics and advertising IDs embedded in a
// page. The same ID on two sites usually means one operator.
type TrackerExtractor struct{}

// NewTrackerExtractor creates a TrackerExtractor.
func NewTrackerExtractor() *TrackerExtractor { return &TrackerExtractor{} }

// Name returns the plugin name.
func (*TrackerExtractor) Name() string { return NameTracker }

// Process returns the IDs found per tracker kind.
func (*TrackerExtractor) Process(_ context.Context, content, _ string) (any, error) {
	found := make(map[string][]string)
	for kind, pattern := range trackerPatterns {
		ids := make(map[string]struct{})
		for _, m := range pattern.FindAllStringSubmatch(content, -1) {
			id := m[0]
			if len(m) > 1 && m[1] != "" {
				id = m[1]
			}
			ids[id] = struct{}{}
		}
		if len(ids) > 0 {
			found[kind] = sortedKeys(ids)
		}
	}
	return found, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

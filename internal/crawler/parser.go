package crawler

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// ParseResult is what the crawler needs from one HTML page.
type ParseResult struct {
	// Title is the trimmed text of the first <title>, or empty.
	Title string

	// RawLinks are the distinct href values as written, sorted.
	RawLinks []string

	// Links are the distinct followable links: resolved against the page
	// URL, restricted to http and https, normalized and sorted.
	Links []string
}

// Parse extracts the title and links of an HTML document.
// The html parser recovers from malformed markup, so Parse only fails on a
// bad page URL.
func Parse(pageURL, content string) (*ParseResult, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	result := &ParseResult{}
	raw := make(map[string]struct{})
	resolved := make(map[string]struct{})
	titleSeen := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if !titleSeen {
					titleSeen = true
					result.Title = strings.TrimSpace(textOf(n))
				}
			case "a":
				if href, ok := getAttr(n, "href"); ok {
					raw[href] = struct{}{}
					if link := resolveURL(base, href); link != "" {
						resolved[link] = struct{}{}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	result.RawLinks = sortedKeys(raw)
	result.Links = sortedKeys(resolved)
	return result, nil
}

// textOf concatenates the text children of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// resolveURL turns href into a normalized absolute http(s) URL, or "" when
// it cannot be followed.
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)

	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	return normalize(resolved)
}

// NormalizeURL normalizes a URL for deduplication: the fragment is dropped,
// scheme and host are lower-cased and an empty path becomes "/". Unparseable
// input is returned unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	return normalize(u)
}

func normalize(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" && n.Opaque == "" {
		n.Path = "/"
	}
	return n.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

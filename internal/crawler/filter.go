package crawler

import (
	"net/url"
	"path/filepath"
	"strings"
)

// LinkFilter decides which discovered links are followed, by URL path.
//
// A link whose path matches any ignore pattern is dropped. When follow
// patterns are set, a link must also match one of them. Patterns use glob
// syntax: "/admin/*", "*.pdf", "/api/v?".
type LinkFilter struct {
	Ignore []string
	Follow []string
}

// Empty reports whether the filter lets every link through.
func (f LinkFilter) Empty() bool {
	return len(f.Ignore) == 0 && len(f.Follow) == 0
}

// Allow reports whether link should be followed.
func (f LinkFilter) Allow(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.Ignore {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(f.Follow) == 0 {
		return true
	}
	for _, pattern := range f.Follow {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern reports whether path matches the glob pattern.
// "/dir/*" also matches deeper paths and "/dir" itself; "*.ext" matches by
// suffix anywhere.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}

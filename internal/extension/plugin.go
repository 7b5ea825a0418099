package extension

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strconv"
)

// Plugin processes the content of one fetched page.
// Process may be called from several goroutines at once.
type Plugin interface {
	// Name returns the registered name used in the manifest and in output.
	Name() string

	// Process returns any JSON-serializable value, or an error that is
	// recorded as this plugin's output for the page.
	Process(ctx context.Context, content, sourceURL string) (any, error)
}

// Configurable is implemented by plugins that accept manifest settings.
// Configure is never called concurrently with Process.
type Configurable interface {
	Configure(settings Settings) error
}

// HTTPClientSetter is implemented by plugins that fetch extra resources,
// such as images, and want to share the crawler's HTTP client.
type HTTPClientSetter interface {
	SetHTTPClient(client *http.Client)
}

// Settings is the free-form configuration object of one manifest entry.
type Settings map[string]any

// Clone returns a shallow copy.
func (s Settings) Clone() Settings {
	if s == nil {
		return Settings{}
	}
	return maps.Clone(s)
}

// Int returns the integer at key, or def when absent or not numeric.
// JSON numbers arrive as float64 and are truncated.
func (s Settings) Int(key string, def int) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// String returns the string at key, or def when absent or not a string.
func (s Settings) String(key, def string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return def
}

// Sub returns the nested object at key, or an empty Settings.
func (s Settings) Sub(key string) Settings {
	switch v := s[key].(type) {
	case map[string]any:
		return Settings(v)
	case Settings:
		return v
	}
	return Settings{}
}

package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/plugcrawler/internal/crawler"
	"github.com/nao1215/plugcrawler/internal/database"
	"github.com/nao1215/plugcrawler/internal/extension"
	"github.com/nao1215/plugcrawler/internal/fetcher"
	"github.com/nao1215/plugcrawler/internal/model"
	"github.com/nao1215/plugcrawler/internal/throttle"
	"github.com/nao1215/plugcrawler/internal/vector"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "plugcrawler"

	// DefaultDepth fetches the seeds only.
	DefaultDepth = 1

	// DefaultMaxPerDomain is the number of simultaneous requests per host.
	DefaultMaxPerDomain = throttle.DefaultLimit

	// DefaultMaxRetries is the number of attempts per URL.
	DefaultMaxRetries = fetcher.DefaultMaxRetries

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = fetcher.DefaultTimeout

	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize = fetcher.DefaultMaxBodySize

	// DefaultRobotsTTL is how long robots.txt rules are cached.
	DefaultRobotsTTL = crawler.DefaultRobotsTTL

	// DefaultPluginDirName is the plugin directory inside the config dir.
	DefaultPluginDirName = "plugins"
)

// Config holds every option of a crawl. It is populated from the config
// file and CLI flags, in that order, and passed down explicitly.
type Config struct {
	// Name is the crawler name printed in the output header.
	Name string

	// Seeds are the starting URLs in the order given.
	Seeds []string

	// Depth bounds link following. 1 fetches the seeds only.
	Depth int

	// Concurrent fans out child fetches.
	Concurrent bool

	// Render fetches through headless Chrome.
	Render bool

	// ListLinks prints the raw hrefs of the seeds when Depth is 1.
	ListLinks bool

	// Delay is slept after each successful retrieval.
	Delay time.Duration

	// UserAgent overrides the User-Agent header when non-empty.
	UserAgent string

	// MaxPerDomain limits simultaneous requests per host.
	MaxPerDomain int

	// MaxRetries is the attempt budget per URL.
	MaxRetries int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RunTimeout bounds the whole run. Zero means no deadline.
	RunTimeout time.Duration

	// MaxBodySize caps each response body. Zero uses the default.
	MaxBodySize int64

	// Robots skips links disallowed by robots.txt.
	Robots bool

	// RobotsTTL is how long fetched robots.txt rules are reused.
	RobotsTTL time.Duration

	// Ignore and Follow are path globs applied to discovered links.
	Ignore []string
	Follow []string

	// UsePlugins runs the loaded plugins on every page.
	UsePlugins bool

	// PluginDir is scanned for executable plugins.
	PluginDir string

	// PluginDirExplicit marks a plugin directory the user chose; an
	// unreadable one aborts the run.
	PluginDirExplicit bool

	// ManifestPath is the plugin manifest.
	ManifestPath string

	// Watch reapplies manifest settings when the file changes.
	Watch bool

	// JSONReport and MarkdownReport select the output format; both unset
	// prints text.
	JSONReport     bool
	MarkdownReport bool

	// FullJSON includes the page trees in JSON output.
	FullJSON bool

	// OutputFile receives the report instead of stdout.
	OutputFile string

	// History saves the run to the SQLite store in DBDir.
	History bool
	DBDir   string

	// Qdrant persists the trace to a Qdrant collection.
	Qdrant           bool
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	QdrantAPIKey     string
	EmbeddingURL     string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the YAML defaults file, if any.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:            DefaultDepth,
		MaxPerDomain:     DefaultMaxPerDomain,
		MaxRetries:       DefaultMaxRetries,
		Timeout:          DefaultTimeout,
		MaxBodySize:      DefaultMaxBodySize,
		RobotsTTL:        DefaultRobotsTTL,
		PluginDir:        DefaultPluginDir(),
		ManifestPath:     DefaultManifestPath(),
		DBDir:            XDGDataDir(),
		QdrantHost:       vector.DefaultHost,
		QdrantPort:       vector.DefaultPort,
		QdrantCollection: vector.DefaultCollection,
		EmbeddingURL:     vector.DefaultEmbeddingURL,
	}
}

// XDGDataDir returns the data directory, which holds the history database.
// On Linux: ~/.local/share/plugcrawler
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the configuration directory.
// On Linux: ~/.config/plugcrawler
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultPluginDir returns ~/.config/plugcrawler/plugins.
func DefaultPluginDir() string {
	return filepath.Join(XDGConfigDir(), DefaultPluginDirName)
}

// DefaultManifestPath returns ~/.config/plugcrawler/plugin_config.json.
func DefaultManifestPath() string {
	return filepath.Join(XDGConfigDir(), extension.DefaultManifestFile)
}

// DefaultDBPath returns the history database file in the data directory.
func DefaultDBPath() string {
	return filepath.Join(XDGDataDir(), database.DefaultFileName)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Name == "" {
		return ErrNoName
	}
	if len(c.Seeds) == 0 {
		return ErrNoSeeds
	}
	for _, seed := range c.Seeds {
		u, err := url.Parse(seed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidSeed
		}
	}
	if c.Depth < 1 {
		return ErrInvalidDepth
	}
	if c.MaxPerDomain < 1 {
		return ErrInvalidMaxPerDomain
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RunTimeout < 0 {
		return ErrInvalidRunTimeout
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.Qdrant && (c.QdrantPort < 1 || c.QdrantPort > 65535) {
		return ErrInvalidQdrantPort
	}
	return nil
}

// Request builds the crawl request for the orchestrator.
func (c *Config) Request() model.CrawlRequest {
	return model.CrawlRequest{
		Name:       c.Name,
		Seeds:      append([]string(nil), c.Seeds...),
		MaxDepth:   c.Depth,
		MaxPerHost: c.MaxPerDomain,
		MaxRetries: c.MaxRetries,
		Delay:      c.Delay,
		UserAgent:  c.UserAgent,
		Render:     c.Render,
		Concurrent: c.Concurrent,
		ListLinks:  c.ListLinks,
		UsePlugins: c.UsePlugins,
	}
}

// QdrantEndpoint returns the Qdrant REST base URL.
func (c *Config) QdrantEndpoint() string {
	return vector.Endpoint(c.QdrantHost, c.QdrantPort)
}

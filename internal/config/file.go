package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for by
// FindConfigFile.
const DefaultConfigFile = ".plugcrawler.yaml"

// File is the YAML defaults file. Every field is optional; unset fields
// leave the built-in default alone.
//
//	crawl:
//	  depth: 2
//	  concurrent: true
//	  delay: 0.5
//	  ignore: ["/admin/*", "*.pdf"]
//	plugins:
//	  enabled: true
//	  manifest: ./plugin_config.json
//	qdrant:
//	  enabled: true
//	  host: qdrant.internal
type File struct {
	Crawl   CrawlSection   `yaml:"crawl"`
	Plugins PluginsSection `yaml:"plugins"`
	Output  OutputSection  `yaml:"output"`
	History HistorySection `yaml:"history"`
	Qdrant  QdrantSection  `yaml:"qdrant"`
}

// CrawlSection holds traversal and fetch defaults.
type CrawlSection struct {
	Depth        *int           `yaml:"depth"`
	Concurrent   *bool          `yaml:"concurrent"`
	Render       *bool          `yaml:"render"`
	ListLinks    *bool          `yaml:"list_links"`
	Delay        *float64       `yaml:"delay"` // seconds
	UserAgent    *string        `yaml:"user_agent"`
	MaxPerDomain *int           `yaml:"max_per_domain"`
	MaxRetries   *int           `yaml:"max_retries"`
	Timeout      *time.Duration `yaml:"timeout"`
	RunTimeout   *time.Duration `yaml:"run_timeout"`
	MaxBodySize  *int64         `yaml:"max_body_size"`
	Robots       *bool          `yaml:"robots"`
	RobotsTTL    *time.Duration `yaml:"robots_ttl"`
	Ignore       []string       `yaml:"ignore"`
	Follow       []string       `yaml:"follow"`
}

// PluginsSection holds plugin loading defaults.
type PluginsSection struct {
	Enabled  *bool   `yaml:"enabled"`
	Dir      *string `yaml:"dir"`
	Manifest *string `yaml:"manifest"`
	Watch    *bool   `yaml:"watch"`
}

// OutputSection holds report defaults.
type OutputSection struct {
	// Format is text, json or markdown.
	Format *string `yaml:"format"`
	File   *string `yaml:"file"`
}

// HistorySection holds the SQLite history defaults.
type HistorySection struct {
	Enabled *bool   `yaml:"enabled"`
	Dir     *string `yaml:"dir"`
}

// QdrantSection holds the vector store defaults.
type QdrantSection struct {
	Enabled      *bool   `yaml:"enabled"`
	Host         *string `yaml:"host"`
	Port         *int    `yaml:"port"`
	Collection   *string `yaml:"collection"`
	APIKey       *string `yaml:"api_key"`
	EmbeddingURL *string `yaml:"embedding_url"`
}

// LoadFile reads a YAML defaults file. A missing file is ErrConfigNotFound.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &f, nil
}

// FindConfigFile returns the configuration file to use, or "" when none
// exists. An explicit path wins; otherwise .plugcrawler.yaml is searched
// for in the current directory, the home directory and the XDG config
// directory, in that order.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), DefaultConfigFile))

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// Apply copies the values set in f into c. changed reports whether the
// CLI flag with the given name was set explicitly; such flags keep their
// value. A nil changed applies every set value.
func (f *File) Apply(c *Config, changed func(flag string) bool) {
	if changed == nil {
		changed = func(string) bool { return false }
	}
	set := func(flag string) bool { return !changed(flag) }

	cr := f.Crawl
	if cr.Depth != nil && set("depth") {
		c.Depth = *cr.Depth
	}
	if cr.Concurrent != nil && set("concurrent") {
		c.Concurrent = *cr.Concurrent
	}
	if cr.Render != nil && set("render") {
		c.Render = *cr.Render
	}
	if cr.ListLinks != nil && set("list-links") {
		c.ListLinks = *cr.ListLinks
	}
	if cr.Delay != nil && set("delay") {
		c.Delay = SecondsToDuration(*cr.Delay)
	}
	if cr.UserAgent != nil && set("user-agent") {
		c.UserAgent = *cr.UserAgent
	}
	if cr.MaxPerDomain != nil && set("max-per-domain") {
		c.MaxPerDomain = *cr.MaxPerDomain
	}
	if cr.MaxRetries != nil && set("max-retries") {
		c.MaxRetries = *cr.MaxRetries
	}
	if cr.Timeout != nil && set("timeout") {
		c.Timeout = *cr.Timeout
	}
	if cr.RunTimeout != nil && set("run-timeout") {
		c.RunTimeout = *cr.RunTimeout
	}
	if cr.MaxBodySize != nil && set("max-body-size") {
		c.MaxBodySize = *cr.MaxBodySize
	}
	if cr.Robots != nil && set("robots") {
		c.Robots = *cr.Robots
	}
	if cr.RobotsTTL != nil {
		c.RobotsTTL = *cr.RobotsTTL
	}
	if len(cr.Ignore) > 0 && set("ignore") {
		c.Ignore = append([]string(nil), cr.Ignore...)
	}
	if len(cr.Follow) > 0 && set("follow") {
		c.Follow = append([]string(nil), cr.Follow...)
	}

	p := f.Plugins
	if p.Enabled != nil && set("use-plugins") {
		c.UsePlugins = *p.Enabled
	}
	if p.Dir != nil && set("plugin-dir") {
		c.PluginDir = *p.Dir
		c.PluginDirExplicit = true
	}
	if p.Manifest != nil && set("manifest") {
		c.ManifestPath = *p.Manifest
	}
	if p.Watch != nil && set("watch") {
		c.Watch = *p.Watch
	}

	o := f.Output
	if o.Format != nil && set("json") && set("markdown") {
		c.JSONReport = *o.Format == "json"
		c.MarkdownReport = *o.Format == "markdown" || *o.Format == "md"
	}
	if o.File != nil && set("output") {
		c.OutputFile = *o.File
	}

	h := f.History
	if h.Enabled != nil && set("history") {
		c.History = *h.Enabled
	}
	if h.Dir != nil && set("history-dir") {
		c.DBDir = *h.Dir
	}

	q := f.Qdrant
	if q.Enabled != nil && set("qdrant") {
		c.Qdrant = *q.Enabled
	}
	if q.Host != nil && set("qdrant-host") {
		c.QdrantHost = *q.Host
	}
	if q.Port != nil && set("qdrant-port") {
		c.QdrantPort = *q.Port
	}
	if q.Collection != nil && set("qdrant-collection") {
		c.QdrantCollection = *q.Collection
	}
	if q.APIKey != nil && set("qdrant-api-key") {
		c.QdrantAPIKey = *q.APIKey
	}
	if q.EmbeddingURL != nil && set("embedding-url") {
		c.EmbeddingURL = *q.EmbeddingURL
	}
}

// SecondsToDuration converts the fractional seconds used by --delay.
func SecondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

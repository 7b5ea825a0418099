package extension

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"

	"github.com/nao1215/plugcrawler/internal/model"
)

// Source marks where a loaded plugin came from.
type Source string

const (
	// SourceBuiltin is a plugin from the Catalog.
	SourceBuiltin Source = "builtin"
	// SourceExec is an executable from the plugin directory.
	SourceExec Source = "exec"
)

// Info describes one loaded plugin.
type Info struct {
	Name         string
	Source       Source
	Path         string
	Configurable bool
}

type loaded struct {
	plugin Plugin
	info   Info
}

// Registry holds the loaded plugin instances for one crawl.
// Process and Reconfigure may be called from different goroutines.
type Registry struct {
	mu      sync.RWMutex
	plugins []loaded
	logger  *slog.Logger
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	catalog      *Catalog
	dir          string
	dirRequired  bool
	manifestPath string
	logger       *slog.Logger
}

// WithCatalog sets the compiled-in plugins to consider.
func WithCatalog(c *Catalog) LoadOption {
	return func(o *loadOptions) {
		o.catalog = c
	}
}

// WithPluginDir sets the directory scanned for executable plugins.
// When required is true a missing or unreadable directory fails Load;
// otherwise it is treated as having no plugins.
func WithPluginDir(dir string, required bool) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
		o.dirRequired = required
	}
}

// WithManifest sets the manifest path.
func WithManifest(path string) LoadOption {
	return func(o *loadOptions) {
		o.manifestPath = path
	}
}

// WithLogger sets the logger for load and processing diagnostics.
func WithLogger(logger *slog.Logger) LoadOption {
	return func(o *loadOptions) {
		o.logger = logger
	}
}

type candidate struct {
	name    string
	source  Source
	path    string
	factory Factory
}

// Load discovers candidates, filters them through the manifest and
// instantiates the survivors. Individual candidates that fail are logged
// and skipped; only an inaccessible required plugin directory is fatal.
func Load(ctx context.Context, opts ...LoadOption) (*Registry, error) {
	o := &loadOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}

	manifest := loadManifestPermissive(o.manifestPath, o.logger)

	candidates, err := collectCandidates(o)
	if err != nil {
		return nil, err
	}

	r := &Registry{logger: o.logger}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !manifest.Includes(c.name) {
			o.logger.Debug("plugin disabled by manifest", "plugin", c.name)
			continue
		}

		p, err := instantiate(c)
		if err != nil {
			o.logger.Warn("failed to load plugin", "error", &DiscoveryError{Name: c.name, Err: err})
			continue
		}

		_, configurable := p.(Configurable)
		if settings, ok := manifest.Settings(c.name); ok && configurable {
			if err := configure(p, settings); err != nil {
				o.logger.Warn("failed to configure plugin", "error", &DiscoveryError{Name: c.name, Err: err})
				continue
			}
		}

		r.plugins = append(r.plugins, loaded{
			plugin: p,
			info:   Info{Name: c.name, Source: c.source, Path: c.path, Configurable: configurable},
		})
		o.logger.Debug("plugin loaded", "plugin", c.name, "source", c.source)
	}
	return r, nil
}

// NewRegistry wraps already-built plugins. It is mostly useful in tests.
func NewRegistry(logger *slog.Logger, plugins ...Plugin) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Registry{logger: logger}
	for _, p := range plugins {
		_, configurable := p.(Configurable)
		r.plugins = append(r.plugins, loaded{
			plugin: p,
			info:   Info{Name: p.Name(), Source: SourceBuiltin, Configurable: configurable},
		})
	}
	return r
}

func loadManifestPermissive(path string, logger *slog.Logger) *Manifest {
	if path == "" {
		return nil
	}
	m, err := LoadManifest(path)
	if err == nil {
		return m
	}
	if errors.Is(err, ErrManifestNotFound) {
		logger.Debug("no plugin manifest, loading all plugins", "path", path)
		return nil
	}
	logger.Warn("ignoring unusable plugin manifest, loading all plugins", "error", err)
	return nil
}

func collectCandidates(o *loadOptions) ([]candidate, error) {
	var candidates []candidate
	seen := make(map[string]bool)

	if o.catalog != nil {
		for _, name := range o.catalog.Names() {
			f, _ := o.catalog.Lookup(name)
			candidates = append(candidates, candidate{name: name, source: SourceBuiltin, factory: f})
			seen[name] = true
		}
	}

	if o.dir == "" {
		return candidates, nil
	}

	execs, err := Discover(o.dir)
	if err != nil {
		if o.dirRequired || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrPluginDir, o.dir, err)
		}
		o.logger.Debug("plugin directory does not exist", "dir", o.dir)
		return candidates, nil
	}

	for _, p := range execs {
		if seen[p.Name()] {
			o.logger.Warn("skipping plugin with duplicate name",
				"error", &DiscoveryError{Name: p.Name(), Err: ErrDuplicatePlugin}, "path", p.Path())
			continue
		}
		seen[p.Name()] = true
		candidates = append(candidates, candidate{
			name:    p.Name(),
			source:  SourceExec,
			path:    p.Path(),
			factory: func() (Plugin, error) { return p, nil },
		})
	}
	return candidates, nil
}

func instantiate(c candidate) (p Plugin, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			p, err = nil, fmt.Errorf("panic during construction: %v", rec)
		}
	}()
	p, err = c.factory()
	if err == nil && p == nil {
		err = errors.New("factory returned no plugin")
	}
	return p, err
}

func configure(p Plugin, settings Settings) (err error) {
	c, ok := p.(Configurable)
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during configure: %v", rec)
		}
	}()
	return c.Configure(settings)
}

// Len returns the number of loaded plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Names returns the loaded plugin names in load order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.plugins))
	for i, l := range r.plugins {
		names[i] = l.info.Name
	}
	return names
}

// Plugins returns a snapshot of the loaded instances in load order.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	plugins := make([]Plugin, len(r.plugins))
	for i, l := range r.plugins {
		plugins[i] = l.plugin
	}
	return plugins
}

// Infos describes the loaded plugins in load order.
func (r *Registry) Infos() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, len(r.plugins))
	for i, l := range r.plugins {
		infos[i] = l.info
	}
	return infos
}

// SetHTTPClient hands client to every plugin that implements HTTPClientSetter.
func (r *Registry) SetHTTPClient(client *http.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.plugins {
		if s, ok := l.plugin.(HTTPClientSetter); ok {
			s.SetHTTPClient(client)
		}
	}
}

// Process runs every plugin on the page, in load order, and returns one
// output per plugin. A plugin that errors or panics yields an output with
// Err set; the rest still run.
func (r *Registry) Process(ctx context.Context, content, sourceURL string) []model.ExtensionOutput {
	r.mu.RLock()
	defer r.mu.RUnlock()

	outputs := make([]model.ExtensionOutput, 0, len(r.plugins))
	for _, l := range r.plugins {
		outputs = append(outputs, r.processOne(ctx, l, content, sourceURL))
	}
	return outputs
}

func (r *Registry) processOne(ctx context.Context, l loaded, content, sourceURL string) (out model.ExtensionOutput) {
	out.Name = l.info.Name
	defer func() {
		if rec := recover(); rec != nil {
			out.Value = nil
			out.Err = fmt.Sprintf("panic: %v", rec)
			r.logger.Error("plugin panicked", "plugin", l.info.Name, "url", sourceURL, "panic", rec)
		}
	}()

	value, err := l.plugin.Process(ctx, content, sourceURL)
	if err != nil {
		out.Err = err.Error()
		r.logger.Warn("plugin failed", "plugin", l.info.Name, "url", sourceURL, "error", err)
		return out
	}
	out.Value = value
	return out
}

// Reconfigure applies the manifest's settings in place to every loaded
// configurable plugin the manifest lists. Instances are kept, so plugin
// state survives. A listed entry without settings resets to an empty
// Settings. Plugins are never added or removed.
func (r *Registry) Reconfigure(m *Manifest) []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, l := range r.plugins {
		if !l.info.Configurable || !m.Lists(l.info.Name) {
			continue
		}
		settings, ok := m.Settings(l.info.Name)
		if !ok {
			settings = Settings{}
		}
		if err := configure(l.plugin, settings); err != nil {
			err = &DiscoveryError{Name: l.info.Name, Err: err}
			r.logger.Warn("failed to reconfigure plugin", "error", err)
			errs = append(errs, err)
			continue
		}
		r.logger.Info("plugin reconfigured", "plugin", l.info.Name)
	}
	return errs
}

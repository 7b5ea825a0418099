package extension

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
)

// DefaultManifestFile is the manifest file name inside the config directory.
const DefaultManifestFile = "plugin_config.json"

// Descriptor is one manifest entry.
type Descriptor struct {
	Name     string   `json:"name"`
	Enabled  bool     `json:"enabled"`
	Settings Settings `json:"settings,omitempty"`
}

// Manifest selects and configures plugins.
type Manifest struct {
	Plugins []Descriptor `json:"plugins"`
}

// LoadManifest reads the manifest at path.
// It returns ErrManifestNotFound when the file does not exist and a
// *ConfigurationError when it cannot be read or parsed.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided manifest path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	return m, nil
}

// ParseManifest decodes manifest JSON. Blank input is an empty manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	for _, d := range m.Plugins {
		if d.Name == "" {
			return nil, ErrInvalidName
		}
	}
	return m, nil
}

// IsEmpty reports whether the manifest lists no plugins. An empty or nil
// manifest enables everything.
func (m *Manifest) IsEmpty() bool {
	return m == nil || len(m.Plugins) == 0
}

// Includes reports whether the plugin name should be loaded.
func (m *Manifest) Includes(name string) bool {
	if m.IsEmpty() {
		return true
	}
	d, ok := m.lookup(name)
	return ok && d.Enabled
}

// Lists reports whether name appears in the manifest, enabled or not.
func (m *Manifest) Lists(name string) bool {
	_, ok := m.lookup(name)
	return ok
}

// Settings returns the settings object for name and whether one was given.
func (m *Manifest) Settings(name string) (Settings, bool) {
	d, ok := m.lookup(name)
	if !ok || d.Settings == nil {
		return nil, false
	}
	return d.Settings.Clone(), true
}

// Enabled returns the names of enabled entries in manifest order.
func (m *Manifest) Enabled() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Plugins))
	for _, d := range m.Plugins {
		if d.Enabled {
			names = append(names, d.Name)
		}
	}
	return names
}

// lookup returns the last entry for name, so later duplicates win.
func (m *Manifest) lookup(name string) (Descriptor, bool) {
	if m == nil {
		return Descriptor{}, false
	}
	for i := len(m.Plugins) - 1; i >= 0; i-- {
		if m.Plugins[i].Name == name {
			return m.Plugins[i], true
		}
	}
	return Descriptor{}, false
}

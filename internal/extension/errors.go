package extension

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound is returned when the manifest file does not exist.
	ErrManifestNotFound = errors.New("plugin manifest not found")

	// ErrPluginDir is returned when an explicitly requested plugin
	// directory cannot be read. It aborts the run.
	ErrPluginDir = errors.New("plugin directory is not accessible")

	// ErrDuplicatePlugin is returned when a name is registered twice.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrUnknownPlugin is returned when no factory exists for a name.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrInvalidName is returned for an empty plugin name.
	ErrInvalidName = errors.New("plugin name must not be empty")
)

// DiscoveryError reports a candidate that could not be loaded or instantiated.
// Load logs it and carries on with the remaining candidates.
type DiscoveryError struct {
	Name string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("plugin %s: %v", e.Name, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a manifest that exists but cannot be used.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

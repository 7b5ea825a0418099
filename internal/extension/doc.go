// Package extension is the plugin runtime of the crawler.
//
// A plugin is any value implementing Plugin. Plugins reach the runtime in two
// ways: compiled-in factories registered in a Catalog by name, and external
// executables found in a plugin directory that speak a small JSON protocol
// over stdin and stdout (see ExecPlugin).
//
// Load builds a Registry from both sources, filtered by the manifest:
//
//	{"plugins": [{"name": "HeadingExtractor", "enabled": true, "settings": {}}]}
//
// A missing or empty manifest loads every candidate. Otherwise only entries
// with "enabled": true are loaded. Manifest settings are passed to plugins
// that implement Configurable.
//
// The Registry isolates plugins from each other: an error or panic in one
// plugin becomes that plugin's output and never stops the others. A Watcher
// re-applies settings in place when the manifest file changes.
package extension

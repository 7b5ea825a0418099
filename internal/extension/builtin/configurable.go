package builtin

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/nao1215/plugcrawler/internal/extension"
)

// ConfigurablePlugin echoes its settings. It counts Process calls so that
// tests can observe that reconfiguration keeps the same instance.
type ConfigurablePlugin struct {
	settings extension.Settings
	calls    atomic.Int64
}

// NewConfigurablePlugin creates a ConfigurablePlugin with empty settings.
func NewConfigurablePlugin() *ConfigurablePlugin {
	return &ConfigurablePlugin{settings: extension.Settings{}}
}

// Name returns the plugin name.
func (*ConfigurablePlugin) Name() string { return NameConfig }

// Configure replaces the settings.
func (c *ConfigurablePlugin) Configure(s extension.Settings) error {
	c.settings = s.Clone()
	return nil
}

// Calls returns how many times Process ran.
func (c *ConfigurablePlugin) Calls() int64 { return c.calls.Load() }

// Process returns "Configured with: " followed by the settings as JSON.
func (c *ConfigurablePlugin) Process(context.Context, string, string) (any, error) {
	c.calls.Add(1)
	data, err := json.Marshal(c.settings)
	if err != nil {
		return nil, err
	}
	return "Configured with: " + string(data), nil
}

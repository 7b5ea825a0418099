package extension

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultExecTimeout bounds one invocation of an external plugin.
const DefaultExecTimeout = 30 * time.Second

// execRequest is written to the plugin's stdin.
type execRequest struct {
	URL      string   `json:"url"`
	Content  string   `json:"content"`
	Settings Settings `json:"settings"`
}

// execResponse is read from the plugin's stdout.
type execResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// ExecPlugin runs an external executable once per page.
//
// The executable receives {"url","content","settings"} on stdin and must
// print {"result": ...} or {"error": "..."} on stdout.
type ExecPlugin struct {
	name     string
	path     string
	timeout  time.Duration
	settings Settings
}

// NewExecPlugin creates a plugin for the executable at path.
func NewExecPlugin(name, path string) *ExecPlugin {
	return &ExecPlugin{
		name:     name,
		path:     path,
		timeout:  DefaultExecTimeout,
		settings: Settings{},
	}
}

// Name returns the plugin name.
func (p *ExecPlugin) Name() string { return p.name }

// Path returns the executable path.
func (p *ExecPlugin) Path() string { return p.path }

// Configure stores settings that are forwarded on every invocation.
func (p *ExecPlugin) Configure(settings Settings) error {
	p.settings = settings.Clone()
	return nil
}

// Process runs the executable with the page as input.
func (p *ExecPlugin) Process(ctx context.Context, content, sourceURL string) (any, error) {
	input, err := json.Marshal(execRequest{URL: sourceURL, Content: content, Settings: p.settings})
	if err != nil {
		return nil, fmt.Errorf("failed to encode plugin input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path) //nolint:gosec // plugin executables are chosen by the user
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("plugin process failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("plugin process failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("invalid plugin output: %w", err)
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("invalid plugin result: %w", err)
	}
	return result, nil
}

// Discover lists the executables in dir as plugins, in file name order.
// The plugin name is the file name without its extension. Hidden files,
// directories and files without an execute bit are skipped.
func Discover(dir string) ([]*ExecPlugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	plugins := make([]*ExecPlugin, 0, len(entries))
	for _, entry := range entries {
		base := entry.Name()
		if entry.IsDir() || strings.HasPrefix(base, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
			continue
		}
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if name == "" {
			continue
		}
		plugins = append(plugins, NewExecPlugin(name, filepath.Join(dir, base)))
	}
	return plugins, nil
}

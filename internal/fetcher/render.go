package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultRenderTimeout bounds one headless browser session.
const DefaultRenderTimeout = 60 * time.Second

// Renderer fetches pages through headless Chrome so that client-side
// scripts have run before the HTML is captured.
type Renderer struct {
	timeout   time.Duration
	userAgent string
	headless  bool
	execPath  string
	logger    *slog.Logger
}

// RenderOption configures a Renderer.
type RenderOption func(*Renderer)

// WithRenderUserAgent sets the browser's User-Agent.
func WithRenderUserAgent(ua string) RenderOption {
	return func(r *Renderer) {
		r.userAgent = ua
	}
}

// WithRenderTimeout sets the per-page browser timeout.
func WithRenderTimeout(d time.Duration) RenderOption {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithHeadless toggles headless mode. It is on by default.
func WithHeadless(headless bool) RenderOption {
	return func(r *Renderer) {
		r.headless = headless
	}
}

// WithExecPath points chromedp at a specific Chrome binary.
func WithExecPath(path string) RenderOption {
	return func(r *Renderer) {
		r.execPath = path
	}
}

// WithRenderLogger sets the logger.
func WithRenderLogger(logger *slog.Logger) RenderOption {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// NewRenderer creates a Renderer. Chrome is started per Get call.
func NewRenderer(opts ...RenderOption) *Renderer {
	r := &Renderer{
		timeout:  DefaultRenderTimeout,
		headless: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Get navigates to rawURL, waits for the body and returns the outer HTML.
// Every failure is reported as a *RenderError.
func (r *Renderer) Get(parent context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	execOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	execOpts = append(execOpts,
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if ua := strings.TrimSpace(r.userAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if r.execPath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	start := time.Now()
	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		r.logger.Debug("chromedp run failed", "url", rawURL, "error", err)
		return "", &RenderError{URL: rawURL, Err: fmt.Errorf("chromedp run: %w", err)}
	}

	r.logger.Debug("chromedp render complete",
		"url", rawURL,
		"latency_ms", time.Since(start).Milliseconds(),
		"html_bytes", len(html),
	)
	return html, nil
}

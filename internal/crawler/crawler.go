package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/plugcrawler/internal/model"
)

// DefaultSeedConcurrency bounds how many seed trees run at once in
// concurrent mode.
const DefaultSeedConcurrency = 4

// Fetcher retrieves the content of one URL. Retries, throttling and the
// politeness delay live behind it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Processor runs the loaded plugins on one page.
type Processor interface {
	Process(ctx context.Context, content, sourceURL string) []model.ExtensionOutput
}

// Crawler drives recursive traversal from seed URLs.
// A Crawler holds no per-run state and may run several requests.
type Crawler struct {
	fetcher         Fetcher
	processor       Processor
	robots          *RobotsPolicy
	filter          LinkFilter
	seedConcurrency int
	visitedExact    int
	logger          *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithProcessor sets the plugin processor. Without one, plugins never run.
func WithProcessor(p Processor) Option {
	return func(c *Crawler) {
		c.processor = p
	}
}

// WithRobots filters links through robots.txt before they are claimed.
func WithRobots(p *RobotsPolicy) Option {
	return func(c *Crawler) {
		c.robots = p
	}
}

// WithLinkFilter sets ignore and follow path patterns for discovered links.
func WithLinkFilter(f LinkFilter) Option {
	return func(c *Crawler) {
		c.filter = f
	}
}

// WithSeedConcurrency sets how many seeds are crawled at once in
// concurrent mode.
func WithSeedConcurrency(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.seedConcurrency = n
		}
	}
}

// WithVisitedLimit sets how many URLs a run remembers exactly before the
// VisitedSet falls back to its bloom filter.
func WithVisitedLimit(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.visitedExact = n
		}
	}
}

// WithLogger sets the logger. Trace lines are logged at Info.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// New creates a Crawler that fetches through f.
func New(f Fetcher, opts ...Option) *Crawler {
	c := &Crawler{
		fetcher:         f,
		seedConcurrency: DefaultSeedConcurrency,
		visitedExact:    DefaultVisitedExact,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is the state of one Run call. The VisitedSet is shared by every
// seed of the request.
type run struct {
	c       *Crawler
	req     model.CrawlRequest
	visited *VisitedSet
}

// Run crawls the request and returns the aggregated output.
//
// Fetch and plugin failures are recorded in the output and never fail the
// run. Run returns an error for an invalid request, and returns the partial
// output with the context error when ctx ends before the crawl completes.
func (c *Crawler) Run(ctx context.Context, req model.CrawlRequest) (*model.Output, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &run{c: c, req: req, visited: NewVisitedSet(c.visitedExact)}
	out := &model.Output{
		Name:      req.Name,
		Seeds:     append([]string(nil), req.Seeds...),
		StartedAt: time.Now(),
	}

	roots := r.claimSeeds()
	if req.Concurrent {
		r.crawlSeedsConcurrently(ctx, roots)
	} else {
		for _, root := range roots {
			r.crawlSequential(ctx, root)
		}
	}

	out.Pages = roots
	out.Lines = Trace(out, req.ListLinks && req.MaxDepth == 1)
	out.FinishedAt = time.Now()

	for _, line := range out.Lines {
		c.logger.Info(line)
	}
	pages, failures := out.Stats()
	c.logger.Debug("crawl finished",
		"name", req.Name,
		"pages", pages,
		"failures", failures,
		"visited", r.visited.Len(),
		"elapsed", out.FinishedAt.Sub(out.StartedAt))

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("crawl interrupted: %w", err)
	}
	return out, nil
}

// claimSeeds normalizes and claims the seeds in order. A seed that repeats
// an earlier one is skipped.
func (r *run) claimSeeds() []*model.PageResult {
	roots := make([]*model.PageResult, 0, len(r.req.Seeds))
	for _, seed := range r.req.Seeds {
		u := NormalizeURL(seed)
		if !r.visited.Claim(u) {
			r.c.logger.Info("skipping duplicate seed", "url", seed)
			continue
		}
		roots = append(roots, model.NewPageResult(u, 0))
	}
	return roots
}

func (r *run) crawlSeedsConcurrently(ctx context.Context, roots []*model.PageResult) {
	var g errgroup.Group
	g.SetLimit(r.c.seedConcurrency)
	for _, root := range roots {
		g.Go(func() error {
			r.crawlConcurrent(ctx, root)
			return nil
		})
	}
	_ = g.Wait()
}

// crawlSequential walks one seed tree with an explicit LIFO stack. Children
// are pushed in reverse so pages are fetched in sorted pre-order, one at a
// time.
func (r *run) crawlSequential(ctx context.Context, root *model.PageResult) {
	stack := []*model.PageResult{root}
	for len(stack) > 0 {
		page := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children := r.visit(ctx, page)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// crawlConcurrent visits page, then crawls all of its children at once and
// waits for them. Each task writes only its own page.
func (r *run) crawlConcurrent(ctx context.Context, page *model.PageResult) {
	children := r.visit(ctx, page)
	if len(children) == 0 {
		return
	}

	var g errgroup.Group
	for _, child := range children {
		g.Go(func() error {
			r.crawlConcurrent(ctx, child)
			return nil
		})
	}
	_ = g.Wait()
}

// visit fetches one page, applies plugins, and claims its children.
// It returns the newly claimed children, which are also attached to page.
func (r *run) visit(ctx context.Context, page *model.PageResult) []*model.PageResult {
	if err := ctx.Err(); err != nil {
		page.SetError(err)
		return nil
	}

	content, err := r.c.fetcher.Fetch(ctx, page.URL)
	if err != nil {
		page.SetError(err)
		r.c.logger.Debug("page failed", "url", page.URL, "error", err)
		return nil
	}
	page.ContentHash = model.ContentDigest(content)

	if r.req.UsePlugins && r.c.processor != nil {
		page.Extensions = r.c.processor.Process(ctx, content, page.URL)
	}

	parsed, err := Parse(page.URL, content)
	if err != nil {
		r.c.logger.Warn("failed to parse page", "url", page.URL, "error", err)
		page.Title = model.NoTitle
		return nil
	}
	page.Title = parsed.Title
	if page.Title == "" {
		page.Title = model.NoTitle
	}

	if r.req.ListLinks && r.req.MaxDepth == 1 {
		page.Links = parsed.RawLinks
	}

	remaining := r.req.MaxDepth - page.Depth
	if remaining <= 1 {
		return nil
	}

	var children []*model.PageResult
	for _, link := range parsed.Links {
		if !r.follow(ctx, link) {
			continue
		}
		if !r.visited.Claim(link) {
			continue
		}
		children = append(children, model.NewPageResult(link, page.Depth+1))
	}
	page.Children = children
	return children
}

func (r *run) follow(ctx context.Context, link string) bool {
	if !r.c.filter.Empty() && !r.c.filter.Allow(link) {
		return false
	}
	if r.c.robots != nil && !r.c.robots.Allowed(ctx, link) {
		r.c.logger.Debug("link disallowed by robots.txt", "url", link)
		return false
	}
	return true
}

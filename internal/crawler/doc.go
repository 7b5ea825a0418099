// Package crawler drives recursive traversal from seed URLs.
//
// A Crawler fetches every seed, runs the plugins on each page, extracts and
// resolves its links and follows them until the requested depth is reached.
// Each URL is fetched at most once per run: a VisitedSet shared by every task
// grants each URL to the first task that claims it, which also makes cyclic
// link graphs terminate.
//
// # Scheduling
//
// Sequential mode keeps one fetch in flight and walks an explicit stack,
// producing pages in sorted pre-order. Concurrent mode fetches all children
// of a page at once and waits for them before the page's task completes, so
// no goroutine outlives Run. Per-host limits, retries and the politeness
// delay are the Fetcher's concern.
//
// # Output
//
// The result is a tree of model.PageResult per seed plus a flattened trace:
//
//	Crawler Name: docs
//	Starting URL: http://example.com/
//	URL: http://example.com/
//	Plugin HeadingExtractor output: {"h1":["Example"],"h2":[],"h3":[]}
//	Title: Example
//	    URL: http://example.com/about
//	    Title: About
//
// # Usage
//
//	c := crawler.New(retrier, crawler.WithProcessor(registry))
//	out, err := c.Run(ctx, model.CrawlRequest{Name: "docs", Seeds: seeds, MaxDepth: 2})
package crawler

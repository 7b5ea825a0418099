package crawler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/plugcrawler/internal/throttle"
)

// DefaultRobotsTTL is how long fetched robots.txt rules are reused.
const DefaultRobotsTTL = 30 * time.Minute

const maxRobotsSize = 512 * 1024

// RobotsPolicy filters links through each host's robots.txt.
// Rules are cached per scheme and host, and concurrent misses for one host
// share a single request. Unreachable robots files allow everything.
type RobotsPolicy struct {
	client    *http.Client
	userAgent string
	rules     *cache.Cache
	inflight  singleflight.Group
	logger    *slog.Logger
}

// NewRobotsPolicy creates a policy that fetches robots.txt with client.
// When table is not nil, each robots.txt request holds a permit for its
// host, so it counts against the same per-host limit as page fetches.
func NewRobotsPolicy(client *http.Client, table *throttle.Table, userAgent string, ttl time.Duration, logger *slog.Logger) *RobotsPolicy {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	client = table.WrapClient(client)
	if ttl <= 0 {
		ttl = DefaultRobotsTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsPolicy{
		client:    client,
		userAgent: userAgent,
		rules:     cache.New(ttl, 2*ttl),
		logger:    logger,
	}
}

// Allowed reports whether link may be fetched.
func (p *RobotsPolicy) Allowed(ctx context.Context, link string) bool {
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() {
		return false
	}

	group := p.robots(ctx, u).FindGroup(p.agentName())
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path)
}

func (p *RobotsPolicy) agentName() string {
	if p.userAgent == "" {
		return "*"
	}
	return p.userAgent
}

func (p *RobotsPolicy) robots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	key := strings.ToLower(u.Scheme + "://" + u.Host)
	if data, ok := p.cached(key); ok {
		return data
	}

	v, _, _ := p.inflight.Do(key, func() (any, error) {
		if data, ok := p.cached(key); ok {
			return data, nil
		}
		data := p.fetch(ctx, key+"/robots.txt")
		// A cancelled lookup says nothing about the host.
		if ctx.Err() == nil {
			p.rules.SetDefault(key, data)
		}
		return data, nil
	})
	return v.(*robotstxt.RobotsData)
}

func (p *RobotsPolicy) cached(key string) (*robotstxt.RobotsData, bool) {
	v, ok := p.rules.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := v.(*robotstxt.RobotsData)
	return data, ok
}

func (p *RobotsPolicy) fetch(ctx context.Context, robotsURL string) *robotstxt.RobotsData {
	allowAll, _ := robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return allowAll
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("robots.txt unreachable, allowing all", "url", robotsURL, "error", err)
		return allowAll
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsSize))
	if err != nil {
		return allowAll
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		p.logger.Debug("robots.txt unparseable, allowing all", "url", robotsURL, "error", err)
		return allowAll
	}
	return data
}

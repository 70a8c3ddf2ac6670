// Package reddit fetches image posts from a rotating set of subreddits
// using the public JSON listings, with the RSS feed as a fallback.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quirkfeed/internal/extractors"
	"quirkfeed/internal/extractors/filters"
	"quirkfeed/internal/logger"
	"quirkfeed/internal/metrics"
)

const upstreamName = "reddit"

// Fetcher is the part of fetch.Client the adapter needs.
type Fetcher interface {
	GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Options tune which channels are read and how.
type Options struct {
	BaseURL          string
	Channels         []string
	ChannelsPerFetch int
	RSSFallback      bool
	ProbeLinks       bool
	ProbeConcurrency int
}

// DefaultOptions matches the public site with the curated channel list.
func DefaultOptions() Options {
	return Options{
		BaseURL:          "https://old.reddit.com",
		Channels:         DefaultChannels,
		ChannelsPerFetch: 5,
		RSSFallback:      true,
		ProbeLinks:       true,
		ProbeConcurrency: 4,
	}
}

// Client fetches quirky posts.
type Client struct {
	opts     Options
	fetcher  Fetcher
	registry *extractors.Registry
	filters  *filters.FilterRegistry
	log      *zap.Logger
	metrics  *metrics.Metrics

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = logger.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// WithRand makes channel picks and shuffles reproducible.
func WithRand(r *rand.Rand) Option { return func(c *Client) { c.rng = r } }

// WithExtractors sets the registry used to probe link posts for an image.
func WithExtractors(r *extractors.Registry) Option { return func(c *Client) { c.registry = r } }

// WithFilters sets which link URLs may be probed.
func WithFilters(f *filters.FilterRegistry) Option { return func(c *Client) { c.filters = f } }

// NewClient creates a Client.
func NewClient(opts Options, fetcher Fetcher, options ...Option) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultOptions().BaseURL
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if len(opts.Channels) == 0 {
		opts.Channels = DefaultChannels
	}
	if opts.ChannelsPerFetch <= 0 {
		opts.ChannelsPerFetch = DefaultOptions().ChannelsPerFetch
	}
	if opts.ProbeConcurrency <= 0 {
		opts.ProbeConcurrency = 1
	}
	c := &Client{
		opts:    opts,
		fetcher: fetcher,
		filters: filters.DefaultFilters(),
		log:     zap.NewNop(),
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// FetchQuirkyPosts returns up to limit image posts drawn from a random pick
// of channels. Channel failures are logged and skipped; an empty result is
// not an error. The error is non-nil only when ctx ended first.
func (c *Client) FetchQuirkyPosts(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		return nil, nil
	}

	channels := c.pickChannels(min(c.opts.ChannelsPerFetch, len(c.opts.Channels)))
	perChannel := (limit + len(channels) - 1) / len(channels)

	started := time.Now()
	results := make([][]Post, len(channels))
	var g errgroup.Group
	for i, name := range channels {
		g.Go(func() error {
			results[i] = c.fetchChannel(ctx, name, perChannel)
			return nil
		})
	}
	_ = g.Wait()
	c.metrics.ObserveUpstream(upstreamName, time.Since(started))

	seen := make(map[string]struct{})
	var posts []Post
	for _, batch := range results {
		for _, p := range batch {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			posts = append(posts, p)
		}
	}

	if len(posts) == 0 && ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c.shuffle(posts)
	if len(posts) > limit {
		posts = posts[:limit]
	}
	c.log.Info("Fetched posts",
		zap.Strings("channels", channels),
		zap.Int("requested", limit),
		zap.Int("returned", len(posts)))
	return posts, nil
}

// fetchChannel never fails; it returns what it could get.
func (c *Client) fetchChannel(ctx context.Context, name string, limit int) []Post {
	posts, err := c.fetchListing(ctx, name, limit)
	if err == nil {
		return posts
	}
	c.metrics.UpstreamFailure(upstreamName)
	c.log.Warn("Channel listing failed", zap.String("channel", name), zap.Error(err))

	if !c.opts.RSSFallback || ctx.Err() != nil {
		return nil
	}
	posts, err = c.fetchRSS(ctx, name, limit)
	if err != nil {
		c.metrics.UpstreamFailure(upstreamName + "_rss")
		c.log.Warn("Channel RSS fallback failed", zap.String("channel", name), zap.Error(err))
		return nil
	}
	return posts
}

func (c *Client) fetchListing(ctx context.Context, name string, limit int) ([]Post, error) {
	// fetch extra to account for filtering
	u := fmt.Sprintf("%s/r/%s/hot.json?limit=%d&raw_json=0", c.opts.BaseURL, url.PathEscape(name), limit*2)
	body, err := c.fetcher.GetBody(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var l listing
	if err := json.Unmarshal(body, &l); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	candidates := make([]Post, 0, len(l.Data.Children))
	for _, child := range l.Data.Children {
		if p, ok := transformPost(child.Data); ok {
			candidates = append(candidates, p)
		}
	}
	return c.withImages(ctx, candidates, limit), nil
}

// withImages keeps posts that have, or can be probed for, an image, in
// their listing order, up to limit.
func (c *Client) withImages(ctx context.Context, candidates []Post, limit int) []Post {
	if c.opts.ProbeLinks && c.registry != nil {
		var g errgroup.Group
		g.SetLimit(c.opts.ProbeConcurrency)
		for i := range candidates {
			p := &candidates[i]
			if p.ImageURL != "" || !c.filters.ShouldProcess(p.URL) {
				continue
			}
			g.Go(func() error {
				img, err := c.registry.ForURL(p.URL).ExtractImage(ctx, p.URL)
				if err != nil {
					c.log.Debug("Link probe found no image", zap.String("url", p.URL), zap.Error(err))
					return nil
				}
				p.ImageURL = img
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make([]Post, 0, limit)
	for _, p := range candidates {
		if p.ImageURL == "" {
			continue
		}
		out = append(out, p)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (c *Client) pickChannels(n int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.rng.Perm(len(c.opts.Channels))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = c.opts.Channels[j]
	}
	return out
}

func (c *Client) shuffle(posts []Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rng.Shuffle(len(posts), func(i, j int) { posts[i], posts[j] = posts[j], posts[i] })
}

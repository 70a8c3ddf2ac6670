package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"go.uber.org/zap"

	"quirkfeed/internal/enhance"
	"quirkfeed/internal/metrics"
	"quirkfeed/internal/reddit"
)

const (
	DefaultFeedLimit = 15
	MaxFeedLimit     = 50
)

// ErrNoPosts means the content source produced nothing to show.
var ErrNoPosts = errors.New("no posts found")

// PostSource supplies raw posts.
type PostSource interface {
	FetchQuirkyPosts(ctx context.Context, limit int) ([]reddit.Post, error)
}

// PostEnhancer annotates a batch of posts. ok=false marks a fallback batch.
type PostEnhancer interface {
	EnhancePosts(ctx context.Context, posts []reddit.Post) ([]enhance.EnhancedPost, bool)
}

// FeedHandler serves the enhanced feed, caching each batch size separately.
type FeedHandler struct {
	Source   PostSource
	Enhancer PostEnhancer
	Cache    *Store
	TTL      time.Duration
	Timeout  time.Duration
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	now      func() time.Time
}

type feedResponse struct {
	Posts     []enhance.EnhancedPost `json:"posts"`
	Count     int                    `json:"count"`
	Timestamp int64                  `json:"timestamp"`
	Cached    bool                   `json:"cached"`
}

// ParseLimit reads the limit query value: missing or unparseable values
// give the default, anything else is clamped to [1, MaxFeedLimit].
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultFeedLimit
	}
	return min(max(n, 1), MaxFeedLimit)
}

// Load returns the enhanced batch for limit, from the cache when fresh.
// Only a batch whose enhancement succeeded is cached.
func (h *FeedHandler) Load(ctx context.Context, limit int) ([]enhance.EnhancedPost, bool, error) {
	key := FeedKey(limit).String()
	posts, cached, err := GetOrLoad(ctx, h.Cache, key, h.TTL, func(ctx context.Context) ([]enhance.EnhancedPost, bool, error) {
		fetchCtx, cancel := withTimeout(ctx, h.Timeout)
		raw, err := h.Source.FetchQuirkyPosts(fetchCtx, limit)
		cancel()
		if err != nil {
			h.Log.Warn("Content source failed", zap.Int("limit", limit), zap.Error(err))
		}
		if len(raw) == 0 {
			return nil, false, ErrNoPosts
		}

		enhanceCtx, cancel := withTimeout(ctx, h.Timeout)
		defer cancel()
		enhanced, ok := h.Enhancer.EnhancePosts(enhanceCtx, raw)
		return enhanced, ok, nil
	})
	h.Metrics.CacheLookup(DomainFeed, cached)
	return posts, cached, err
}

func (h *FeedHandler) serveJSON(w http.ResponseWriter, r *http.Request) error {
	limit := ParseLimit(r.URL.Query().Get("limit"))
	posts, cached, err := h.Load(r.Context(), limit)
	if errors.Is(err, ErrNoPosts) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "No posts found", "posts": []any{}})
		return nil
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, feedResponse{
		Posts:     posts,
		Count:     len(posts),
		Timestamp: millis(h.clock()),
		Cached:    cached,
	})
	return nil
}

func (h *FeedHandler) serveRSS(w http.ResponseWriter, r *http.Request) error {
	limit := ParseLimit(r.URL.Query().Get("limit"))
	posts, _, err := h.Load(r.Context(), limit)
	if errors.Is(err, ErrNoPosts) {
		http.Error(w, "No posts found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return err
	}

	feed := BuildFeed(posts, "http://"+r.Host+"/", h.clock())
	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("render rss: %w", err)
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rss))
	return nil
}

// BuildFeed renders an enhanced batch as a syndication feed: captions
// become descriptions and images become enclosures.
func BuildFeed(posts []enhance.EnhancedPost, link string, now time.Time) *feeds.Feed {
	feed := &feeds.Feed{
		Title:       "quirkfeed",
		Link:        &feeds.Link{Href: link},
		Description: "The internet's oddest images, narrated by strangers",
		Created:     now,
	}
	for _, p := range posts {
		item := &feeds.Item{
			Id:          p.ID,
			Title:       p.Title,
			Link:        &feeds.Link{Href: p.Permalink},
			Description: p.AICaption,
			Author:      &feeds.Author{Name: p.Author},
			Created:     time.Unix(int64(p.Created), 0).UTC(),
		}
		if p.ImageURL != "" {
			item.Enclosure = &feeds.Enclosure{Url: p.ImageURL, Type: imageMIME(p.ImageURL), Length: "0"}
		}
		feed.Items = append(feed.Items, item)
	}
	return feed
}

func imageMIME(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func (h *FeedHandler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

// withTimeout bounds one upstream call; d <= 0 means no bound.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

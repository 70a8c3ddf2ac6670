package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"quirkfeed/internal/config"
	"quirkfeed/internal/enhance"
	"quirkfeed/internal/reddit"
)

type fakeSource struct {
	mu    sync.Mutex
	posts []reddit.Post
	block bool
	panic bool
	calls int
}

func (f *fakeSource) FetchQuirkyPosts(ctx context.Context, limit int) ([]reddit.Post, error) {
	f.mu.Lock()
	f.calls++
	posts, block, boom := f.posts, f.block, f.panic
	f.mu.Unlock()

	if boom {
		panic("source exploded")
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return posts[:min(limit, len(posts))], nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEnhancer struct {
	mu           sync.Mutex
	captionsOK   bool
	themeOK      bool
	enhanceCalls int
	themeCalls   int
}

func (f *fakeEnhancer) EnhancePosts(_ context.Context, posts []reddit.Post) ([]enhance.EnhancedPost, bool) {
	f.mu.Lock()
	f.enhanceCalls++
	ok, take := f.captionsOK, f.enhanceCalls
	f.mu.Unlock()

	out := make([]enhance.EnhancedPost, len(posts))
	for i, p := range posts {
		caption := fmt.Sprintf("caption for %s take %d", p.ID, take)
		out[i] = enhance.EnhancedPost{Post: p, AICaption: caption, AIPersonality: "cryptid", Mood: "cursed"}
	}
	return out, ok
}

func (f *fakeEnhancer) GenerateTheme(context.Context) (enhance.Theme, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.themeCalls++
	return enhance.DefaultThemes[1], f.themeOK
}

func (f *fakeEnhancer) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enhanceCalls, f.themeCalls
}

func makePosts(n int) []reddit.Post {
	posts := make([]reddit.Post, n)
	for i := range posts {
		posts[i] = reddit.Post{
			ID:        fmt.Sprintf("p%d", i),
			Title:     fmt.Sprintf("odd thing %d", i),
			Author:    "someone",
			Subreddit: "hmmm",
			ImageURL:  fmt.Sprintf("https://i.redd.it/p%d.png", i),
			Permalink: fmt.Sprintf("https://reddit.com/r/hmmm/comments/p%d/", i),
			Created:   1700000000,
		}
	}
	return posts
}

type testEnv struct {
	srv   *Server
	http  *httptest.Server
	src   *fakeSource
	enh   *fakeEnhancer
	clock *fakeClock
}

func newTestEnv(t *testing.T, src *fakeSource, enh *fakeEnhancer, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	clock := newFakeClock()
	s, err := NewServer(cfg, WithSource(src), WithEnhancer(enh), WithServerClock(clock.Now))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return &testEnv{srv: s, http: hs, src: src, enh: enh, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, out any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return resp
}

type feedBody struct {
	Posts     []enhance.EnhancedPost `json:"posts"`
	Count     int                    `json:"count"`
	Timestamp int64                  `json:"timestamp"`
	Cached    bool                   `json:"cached"`
	Error     string                 `json:"error"`
}

func TestFeedMissThenHit(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(15)}, &fakeEnhancer{captionsOK: true}, nil)

	var first feedBody
	resp := env.do(t, http.MethodGet, "/feed?limit=15", &first)
	if resp.StatusCode != http.StatusOK || first.Cached || first.Count != 15 || len(first.Posts) != 15 {
		t.Fatalf("first = %d %+v", resp.StatusCode, first)
	}
	if first.Posts[0].AICaption != "caption for p0 take 1" || first.Timestamp != env.clock.Now().UnixMilli() {
		t.Errorf("first = %+v", first)
	}

	env.clock.Advance(time.Minute)
	var second feedBody
	env.do(t, http.MethodGet, "/api/feed", &second)
	if !second.Cached || second.Count != 15 {
		t.Fatalf("second = %+v", second)
	}
	if !reflect.DeepEqual(first.Posts, second.Posts) {
		t.Errorf("cached batch differs:\nfirst  %+v\nsecond %+v", first.Posts, second.Posts)
	}
	if second.Timestamp != env.clock.Now().UnixMilli() {
		t.Errorf("second timestamp = %d", second.Timestamp)
	}
	if env.src.Calls() != 1 {
		t.Errorf("source calls = %d, want 1", env.src.Calls())
	}
	if enh, _ := env.enh.counts(); enh != 1 {
		t.Errorf("enhance calls = %d, want 1", enh)
	}
}

func withAdmin(c *config.Config) { c.Server.EnableAdmin = true }

func TestFeedLimitsAreSeparateEntries(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(60)}, &fakeEnhancer{captionsOK: true}, withAdmin)

	var a, b, c feedBody
	env.do(t, http.MethodGet, "/feed?limit=15", &a)
	env.do(t, http.MethodGet, "/feed?limit=30", &b)
	env.do(t, http.MethodGet, "/feed?limit=abc", &c)
	if a.Cached || b.Cached || !c.Cached {
		t.Fatalf("cached flags = %v %v %v", a.Cached, b.Cached, c.Cached)
	}
	if a.Count != 15 || b.Count != 30 {
		t.Fatalf("counts = %d %d", a.Count, b.Count)
	}

	var stats CacheStats
	env.do(t, http.MethodGet, "/admin/cache", &stats)
	if stats.Size != 2 || strings.Join(stats.Keys, ",") != "feed_15,feed_30" {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestFeedExpiresAfterTTL(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(3)}, &fakeEnhancer{captionsOK: true}, nil)

	env.do(t, http.MethodGet, "/feed", nil)
	env.clock.Advance(config.Default().Cache.FeedTTL)
	var body feedBody
	env.do(t, http.MethodGet, "/feed", &body)
	if !body.Cached {
		t.Fatal("entry at exactly the ttl should still be served")
	}

	env.clock.Advance(time.Second)
	env.do(t, http.MethodGet, "/feed", &body)
	if body.Cached || env.src.Calls() != 2 {
		t.Fatalf("cached=%v calls=%d", body.Cached, env.src.Calls())
	}
}

func TestFeedEmptyIsNotFoundAndNotCached(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, &fakeEnhancer{captionsOK: true}, nil)

	for i := 0; i < 2; i++ {
		var body map[string]any
		resp := env.do(t, http.MethodGet, "/feed", &body)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		posts, ok := body["posts"].([]any)
		if body["error"] != "No posts found" || !ok || len(posts) != 0 {
			t.Fatalf("body = %v", body)
		}
	}
	if env.src.Calls() != 2 {
		t.Errorf("source calls = %d, want 2", env.src.Calls())
	}
	if enh, _ := env.enh.counts(); enh != 0 {
		t.Errorf("enhancer called %d times for empty batch", enh)
	}
	if env.srv.cache.Size() != 0 {
		t.Errorf("cache size = %d", env.srv.cache.Size())
	}
}

func TestFeedFallbackCaptionsAreNotCached(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(3)}, &fakeEnhancer{captionsOK: false}, nil)

	var a, b feedBody
	env.do(t, http.MethodGet, "/feed", &a)
	env.do(t, http.MethodGet, "/feed", &b)
	if a.Cached || b.Cached || a.Count != 3 {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
	if env.src.Calls() != 2 {
		t.Errorf("source calls = %d, want 2", env.src.Calls())
	}
}

type cannedCompleter struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (c *cannedCompleter) Complete(context.Context, enhance.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.reply, nil
}

func TestFeedUncaptionedBatchIsNotCached(t *testing.T) {
	src := &fakeSource{posts: makePosts(3)}
	completer := &cannedCompleter{reply: `{"posts":[]}`}
	s, err := NewServer(config.Default(), WithSource(src), WithEnhancer(enhance.New(completer)))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		posts, cached, err := s.feed.Load(context.Background(), 3)
		if err != nil || cached || len(posts) != 3 {
			t.Fatalf("load %d: cached=%v len=%d err=%v", i, cached, len(posts), err)
		}
	}
	if completer.calls != 2 || src.Calls() != 2 {
		t.Errorf("completer calls = %d, source calls = %d", completer.calls, src.Calls())
	}
	if s.cache.Size() != 0 {
		t.Errorf("cache keys = %v", s.cache.Stats().Keys)
	}
}

func TestFeedUpstreamTimeout(t *testing.T) {
	env := newTestEnv(t, &fakeSource{block: true}, &fakeEnhancer{captionsOK: true}, func(c *config.Config) {
		c.Server.UpstreamTimeout = 20 * time.Millisecond
	})

	start := time.Now()
	resp := env.do(t, http.MethodGet, "/feed", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout not applied")
	}
}

func TestFeedPanicBecomes500(t *testing.T) {
	env := newTestEnv(t, &fakeSource{panic: true}, &fakeEnhancer{}, nil)

	var body map[string]string
	resp := env.do(t, http.MethodGet, "/feed", &body)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] == "" || !strings.Contains(body["details"], "source exploded") {
		t.Fatalf("body = %v", body)
	}

	// the process keeps serving
	if resp := env.do(t, http.MethodGet, "/health", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
}

func TestConcurrentFeedMissesShareOneFetch(t *testing.T) {
	src := &fakeSource{posts: makePosts(5)}
	env := newTestEnv(t, src, &fakeEnhancer{captionsOK: true}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := env.srv.feed.Load(context.Background(), 5); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	// late arrivals may hit the cache instead of joining the flight
	if src.Calls() != 1 {
		t.Fatalf("source calls = %d, want 1", src.Calls())
	}
}

type themeBody struct {
	Theme     enhance.Theme `json:"theme"`
	Timestamp int64         `json:"timestamp"`
	Cached    bool          `json:"cached"`
}

func TestThemeMissThenHit(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, &fakeEnhancer{themeOK: true}, nil)

	var a, b themeBody
	env.do(t, http.MethodGet, "/theme", &a)
	env.do(t, http.MethodGet, "/api/theme", &b)
	if a.Cached || !b.Cached || a.Theme != enhance.DefaultThemes[1] || b.Theme != a.Theme {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
	if _, themes := env.enh.counts(); themes != 1 {
		t.Errorf("theme calls = %d, want 1", themes)
	}
}

func TestThemeFallbackIsNotCached(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, &fakeEnhancer{themeOK: false}, nil)

	var a, b themeBody
	env.do(t, http.MethodGet, "/theme", &a)
	env.do(t, http.MethodGet, "/theme", &b)
	if a.Cached || b.Cached || a.Theme.PrimaryColor == "" {
		t.Fatalf("a=%+v b=%+v", a, b)
	}
	if _, themes := env.enh.counts(); themes != 2 {
		t.Errorf("theme calls = %d, want 2", themes)
	}
}

func TestThemeAndFeedAreIndependent(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(3)}, &fakeEnhancer{captionsOK: true, themeOK: true}, withAdmin)

	env.do(t, http.MethodGet, "/theme", nil)
	env.do(t, http.MethodDelete, "/admin/cache?key=theme", nil)

	var feed feedBody
	env.do(t, http.MethodGet, "/feed", &feed)
	var theme themeBody
	env.do(t, http.MethodGet, "/theme", &theme)
	if theme.Cached || feed.Cached {
		t.Fatalf("theme=%v feed=%v", theme.Cached, feed.Cached)
	}

	env.do(t, http.MethodDelete, "/admin/cache", nil)
	if env.srv.cache.Size() != 0 {
		t.Fatalf("cache size = %d", env.srv.cache.Size())
	}
}

func TestHomePageRendersFeedAndTheme(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(2)}, &fakeEnhancer{captionsOK: true, themeOK: true}, nil)

	resp, err := http.Get(env.http.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)

	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("status=%d type=%s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{
		"digital psychosis",
		"caption for p1",
		"--primary-color: #FF1493",
		`data-layout="grid"`,
		`<meta http-equiv="refresh" content="45">`,
		`href="/?limit=15"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestHomePageRefreshDisabled(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(2)}, &fakeEnhancer{captionsOK: true, themeOK: true}, func(c *config.Config) {
		c.Server.HomeRefresh = 0
	})

	resp, err := http.Get(env.http.URL + "/?limit=7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if strings.Contains(page, "http-equiv") || !strings.Contains(page, `href="/?limit=7"`) {
		t.Fatalf("page = %s", page)
	}
}

func TestHomePageSurvivesEmptyFeed(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, &fakeEnhancer{themeOK: true}, nil)

	resp, err := http.Get(env.http.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "digital psychosis") {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if _, themes := env.enh.counts(); themes != 1 {
		t.Errorf("theme calls = %d", themes)
	}
}

func TestHomePageSurvivesSourcePanic(t *testing.T) {
	env := newTestEnv(t, &fakeSource{panic: true}, &fakeEnhancer{themeOK: true}, nil)

	resp, err := http.Get(env.http.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "digital psychosis") {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestFeedRSS(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(2)}, &fakeEnhancer{captionsOK: true}, nil)

	resp, err := http.Get(env.http.URL + "/feed.rss?limit=2")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	rss := string(body)
	if !strings.Contains(resp.Header.Get("Content-Type"), "rss") {
		t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{"<rss", "caption for p0", `url="https://i.redd.it/p1.png"`, `type="image/png"`} {
		if !strings.Contains(rss, want) {
			t.Errorf("rss missing %q:\n%s", want, rss)
		}
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	env := newTestEnv(t, &fakeSource{posts: makePosts(1)}, &fakeEnhancer{captionsOK: true}, nil)
	env.do(t, http.MethodGet, "/feed", nil)

	var health map[string]any
	resp := env.do(t, http.MethodGet, "/health", &health)
	if health["status"] != "ok" || health["cache_size"] != float64(1) {
		t.Errorf("health = %v", health)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Error("missing request id")
	}

	mresp, err := http.Get(env.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer mresp.Body.Close()
	text, _ := io.ReadAll(mresp.Body)
	for _, want := range []string{
		`quirkfeed_cache_requests_total{domain="feed",result="miss"} 1`,
		"quirkfeed_cache_entries 1",
	} {
		if !strings.Contains(string(text), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestAdminDisabledByDefault(t *testing.T) {
	env := newTestEnv(t, &fakeSource{}, &fakeEnhancer{}, nil)
	if resp := env.do(t, http.MethodGet, "/admin/cache", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestParseLimit(t *testing.T) {
	tests := map[string]int{"": 15, "abc": 15, "7": 7, "0": 1, "-3": 1, "500": 50, " 30 ": 30}
	for raw, want := range tests {
		if got := ParseLimit(raw); got != want {
			t.Errorf("ParseLimit(%q) = %d, want %d", raw, got, want)
		}
	}
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.ThemeTTL = time.Second
	if _, err := NewServer(cfg, WithSource(&fakeSource{}), WithEnhancer(&fakeEnhancer{})); err == nil {
		t.Fatal("expected error")
	}
}

package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quirkfeed/internal/config"
	"quirkfeed/internal/enhance"
	"quirkfeed/internal/extractors"
	"quirkfeed/internal/fetch"
	"quirkfeed/internal/logger"
	"quirkfeed/internal/metrics"
	"quirkfeed/internal/reddit"
)

// Enhancer is the generative side: captions and themes.
type Enhancer interface {
	PostEnhancer
	ThemeGenerator
}

// Server is the application server.
type Server struct {
	cfg     *config.Config
	cache   *Store
	log     *zap.Logger
	metrics *metrics.Metrics
	feed    *FeedHandler
	theme   *ThemeHandler
	mux     *http.ServeMux

	source   PostSource
	enhancer Enhancer
	clock    func() time.Time
	rng      *rand.Rand

	shutdown chan struct{}
}

// ServerOption customizes NewServer, mostly for tests.
type ServerOption func(*Server)

func WithLogger(l *zap.Logger) ServerOption { return func(s *Server) { s.log = logger.OrNop(l) } }

// WithSource replaces the reddit client.
func WithSource(src PostSource) ServerOption { return func(s *Server) { s.source = src } }

// WithEnhancer replaces the OpenAI-backed enhancer.
func WithEnhancer(e Enhancer) ServerOption { return func(s *Server) { s.enhancer = e } }

// WithServerClock sets the clock used by the cache and response timestamps.
func WithServerClock(now func() time.Time) ServerOption { return func(s *Server) { s.clock = now } }

// WithRandSource seeds the channel picker and the fallback choices.
func WithRandSource(r *rand.Rand) ServerOption { return func(s *Server) { s.rng = r } }

// NewServer wires the cache, upstream adapters and routes from cfg.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		log:      zap.NewNop(),
		clock:    time.Now,
		mux:      http.NewServeMux(),
		shutdown: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}

	s.cache = NewStore(WithClock(s.clock))
	s.metrics = metrics.New("quirkfeed", s.cache.Size)

	if s.source == nil {
		s.source = s.newRedditClient()
	}
	if s.enhancer == nil {
		s.enhancer = s.newEnhancer()
	}

	s.feed = &FeedHandler{
		Source:   s.source,
		Enhancer: s.enhancer,
		Cache:    s.cache,
		TTL:      cfg.Cache.FeedTTL,
		Timeout:  cfg.Server.UpstreamTimeout,
		Log:      s.log.Named("feed"),
		Metrics:  s.metrics,
		now:      s.clock,
	}
	s.theme = &ThemeHandler{
		Generator: s.enhancer,
		Cache:     s.cache,
		TTL:       cfg.Cache.ThemeTTL,
		Timeout:   cfg.Server.UpstreamTimeout,
		Log:       s.log.Named("theme"),
		Metrics:   s.metrics,
		now:       s.clock,
	}

	s.registerRoutes()
	return s, nil
}

func (s *Server) newRedditClient() *reddit.Client {
	rc := s.cfg.Reddit
	hc := fetch.NewClient(fetch.ClientOptions{
		Timeout:   rc.RequestTimeout,
		UserAgent: rc.UserAgent,
		RetryMax:  rc.RetryMax,
		Logger:    s.log.Named("http"),
	})

	r := extractors.NewRegistry()
	r.RegisterDefault(extractors.NewDefaultExtractor(hc))
	r.RegisterDomain("imgur.com", extractors.NewImgurExtractor())

	opts := []reddit.Option{
		reddit.WithLogger(s.log.Named("reddit")),
		reddit.WithMetrics(s.metrics),
		reddit.WithExtractors(r),
	}
	if s.rng != nil {
		opts = append(opts, reddit.WithRand(s.rng))
	}
	return reddit.NewClient(reddit.Options{
		BaseURL:          rc.BaseURL,
		Channels:         rc.Channels,
		ChannelsPerFetch: rc.ChannelsPerFetch,
		RSSFallback:      rc.RSSFallback,
		ProbeLinks:       rc.ProbeLinks,
		ProbeConcurrency: reddit.DefaultOptions().ProbeConcurrency,
	}, hc, opts...)
}

func (s *Server) newEnhancer() *enhance.Enhancer {
	oc := s.cfg.OpenAI
	hc := fetch.NewClient(fetch.ClientOptions{
		Timeout: s.cfg.Server.UpstreamTimeout,
		Logger:  s.log.Named("http"),
	})
	if oc.APIKey == "" {
		s.log.Warn("OPENAI_API_KEY not set, serving default themes and captions")
	}
	opts := []enhance.Option{
		enhance.WithLogger(s.log.Named("enhance")),
		enhance.WithMetrics(s.metrics),
		enhance.WithTemperatures(oc.ThemeTemperature, oc.CaptionTemperature),
	}
	if s.rng != nil {
		// the reddit client owns s.rng; give the enhancer its own stream
		opts = append(opts, enhance.WithRand(rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))))
	}
	return enhance.New(enhance.NewOpenAIClient(enhance.OpenAIConfig{
		APIKey:  oc.APIKey,
		Model:   oc.Model,
		BaseURL: oc.BaseURL,
	}, hc), opts...)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.withCommonHeaders(s.withRequestID(s.withLogging(s.withRecovery(s.mux))))
}

// Run serves on the configured address until ctx ends, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.cacheCleanerLoop()
	defer close(s.shutdown)

	h := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("Listening", zap.String("addr", h.Addr))
		errc <- h.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return h.Shutdown(shutdownCtx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("GET /{$}", withErrors(s.log, "Failed to render page", s.handleHome))
	for _, p := range []string{"GET /feed", "GET /api/feed"} {
		s.mux.Handle(p, withErrors(s.log, "Failed to fetch feed", s.feed.serveJSON))
	}
	s.mux.Handle("GET /feed.rss", withErrors(s.log, "Failed to fetch feed", s.feed.serveRSS))
	for _, p := range []string{"GET /theme", "GET /api/theme"} {
		s.mux.Handle(p, withErrors(s.log, "Failed to generate theme", s.theme.serveJSON))
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	if s.cfg.Server.EnableAdmin {
		s.mux.HandleFunc("GET /admin/cache", s.handleCacheStats)
		s.mux.HandleFunc("DELETE /admin/cache", s.handleCacheClear)
	}
}

// handleHealth returns JSON health information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    "quirkfeed",
		"cache_size": s.cache.Size(),
		"timestamp":  s.clock().Format(time.RFC3339),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// handleCacheClear drops one key, or everything when no key is given.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.cache.Clear()
		key = "*"
	} else {
		s.cache.Invalidate(key)
	}
	s.log.Info("Cache cleared", zap.String("key", key))
	writeJSON(w, http.StatusOK, map[string]any{"cleared": key, "size": s.cache.Size()})
}

// cacheCleanerLoop periodically drops entries no TTL could still serve.
func (s *Server) cacheCleanerLoop() {
	interval := s.cfg.Cache.CleanupInterval
	if interval <= 0 {
		return
	}
	maxAge := max(s.cfg.Cache.ThemeTTL, s.cfg.Cache.FeedTTL)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.cache.Cleanup(maxAge); n > 0 {
				s.log.Debug("Cache cleanup", zap.Int("removed", n))
			}
		case <-s.shutdown:
			return
		}
	}
}

package app

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quirkfeed/internal/enhance"
	"quirkfeed/internal/metrics"
)

// ThemeGenerator produces a theme. ok=false marks a static fallback.
type ThemeGenerator interface {
	GenerateTheme(ctx context.Context) (enhance.Theme, bool)
}

// ThemeHandler serves the current theme.
type ThemeHandler struct {
	Generator ThemeGenerator
	Cache     *Store
	TTL       time.Duration
	Timeout   time.Duration
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	now       func() time.Time
}

type themeResponse struct {
	Theme     enhance.Theme `json:"theme"`
	Timestamp int64         `json:"timestamp"`
	Cached    bool          `json:"cached"`
}

// Load returns the cached theme or generates one. Fallback themes are
// served but never cached, so the next request tries the model again.
func (h *ThemeHandler) Load(ctx context.Context) (enhance.Theme, bool, error) {
	theme, cached, err := GetOrLoad(ctx, h.Cache, ThemeKey().String(), h.TTL, func(ctx context.Context) (enhance.Theme, bool, error) {
		genCtx, cancel := withTimeout(ctx, h.Timeout)
		defer cancel()
		theme, ok := h.Generator.GenerateTheme(genCtx)
		if !ok {
			h.Log.Debug("Serving uncached fallback theme", zap.String("mood", theme.Mood))
		}
		return theme, ok, nil
	})
	h.Metrics.CacheLookup(DomainTheme, cached)
	return theme, cached, err
}

func (h *ThemeHandler) serveJSON(w http.ResponseWriter, r *http.Request) error {
	theme, cached, err := h.Load(r.Context())
	if err != nil {
		return err
	}
	now := time.Now()
	if h.now != nil {
		now = h.now()
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: theme, Timestamp: millis(now), Cached: cached})
	return nil
}

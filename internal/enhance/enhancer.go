package enhance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quirkfeed/internal/decode"
	"quirkfeed/internal/logger"
	"quirkfeed/internal/metrics"
	"quirkfeed/internal/reddit"
)

const (
	ThemeTemperature   = 1.8
	CaptionTemperature = 1.9

	upstreamName = "openai"
)

// Enhancer turns model output into themes and captions.
type Enhancer struct {
	completer Completer
	decoder   *decode.Decoder
	log       *zap.Logger
	metrics   *metrics.Metrics

	themeTemp   float64
	captionTemp float64

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures an Enhancer.
type Option func(*Enhancer)

func WithLogger(l *zap.Logger) Option { return func(e *Enhancer) { e.log = logger.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Enhancer) { e.metrics = m } }

// WithRand makes the choice of fallback themes and captions reproducible.
func WithRand(r *rand.Rand) Option { return func(e *Enhancer) { e.rng = r } }

// WithTemperatures overrides the sampling temperatures. Zero keeps the default.
func WithTemperatures(theme, caption float64) Option {
	return func(e *Enhancer) {
		if theme > 0 {
			e.themeTemp = theme
		}
		if caption > 0 {
			e.captionTemp = caption
		}
	}
}

// New creates an Enhancer. A nil completer behaves as an unconfigured model.
func New(c Completer, opts ...Option) *Enhancer {
	e := &Enhancer{
		completer:   c,
		log:         zap.NewNop(),
		themeTemp:   ThemeTemperature,
		captionTemp: CaptionTemperature,
		rng:         rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x2545f4914f6cdd1d)),
	}
	for _, o := range opts {
		o(e)
	}
	e.decoder = decode.New(
		decode.WithLogger(e.log),
		decode.WithObserver(func(o decode.Outcome) { e.metrics.DecodeOutcome(string(o)) }),
	)
	return e
}

func (e *Enhancer) complete(ctx context.Context, msgs []Message, temp float64) (string, error) {
	if e.completer == nil {
		return "", ErrNotConfigured
	}
	started := time.Now()
	out, err := e.completer.Complete(ctx, CompletionRequest{Messages: msgs, Temperature: temp})
	e.metrics.ObserveUpstream(upstreamName, time.Since(started))
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		e.metrics.UpstreamFailure(upstreamName)
	}
	return out, err
}

// GenerateTheme asks the model for a theme. ok is false when a static
// default was returned instead.
func (e *Enhancer) GenerateTheme(ctx context.Context) (Theme, bool) {
	msgs, err := themeMessages()
	if err == nil {
		var raw string
		raw, err = e.complete(ctx, msgs, e.themeTemp)
		if err == nil {
			fields := decode.Value[map[string]any](e.decoder, raw, nil)
			if fields == nil {
				err = decode.ErrUnrecoverable
			} else {
				var theme Theme
				if theme, err = ParseTheme(fields); err == nil {
					return theme, true
				}
			}
		}
	}

	e.log.Warn("Theme generation failed, using default", zap.Error(err))
	e.metrics.Fallback("theme")
	return e.defaultTheme(), false
}

type captionEntry struct {
	caption     string
	personality string
	mood        string
}

// EnhancePosts annotates every post in one model call. The result has the
// same length and order as posts. ok is false when the call failed as a
// whole or captioned none of the posts; every annotation is then a default.
func (e *Enhancer) EnhancePosts(ctx context.Context, posts []reddit.Post) ([]EnhancedPost, bool) {
	if len(posts) == 0 {
		return []EnhancedPost{}, true
	}

	entries, err := e.captions(ctx, posts)
	if err != nil {
		return e.failedPosts(posts, err), false
	}

	out := make([]EnhancedPost, len(posts))
	missing := 0
	for i, p := range posts {
		entry := entries[i+1]
		ep := EnhancedPost{Post: p, AICaption: entry.caption, AIPersonality: entry.personality, Mood: entry.mood}
		if ep.AICaption == "" {
			ep.AICaption = e.defaultCaption()
			missing++
		}
		if ep.AIPersonality == "" {
			ep.AIPersonality = defaultPersonality
		}
		if ep.Mood == "" {
			ep.Mood = defaultMood
		}
		out[i] = ep
	}
	if missing == len(posts) {
		return e.failedPosts(posts, errNoCaptions), false
	}
	if missing > 0 {
		e.log.Debug("Model skipped some captions", zap.Int("missing", missing), zap.Int("posts", len(posts)))
	}
	return out, true
}

var errNoCaptions = errors.New("enhance: completion captioned none of the posts")

// failedPosts annotates every post with defaults after a whole-call failure.
func (e *Enhancer) failedPosts(posts []reddit.Post, err error) []EnhancedPost {
	e.log.Warn("Caption generation failed, using defaults", zap.Int("posts", len(posts)), zap.Error(err))
	e.metrics.Fallback("captions")
	out := make([]EnhancedPost, len(posts))
	for i, p := range posts {
		out[i] = EnhancedPost{
			Post:          p,
			AICaption:     e.defaultCaption(),
			AIPersonality: failedPersonality,
			Mood:          failedMood,
		}
	}
	return out
}

// captions returns the model's entries keyed by 1-based index.
func (e *Enhancer) captions(ctx context.Context, posts []reddit.Post) (map[int]captionEntry, error) {
	msgs, err := captionMessages(posts)
	if err != nil {
		return nil, err
	}
	raw, err := e.complete(ctx, msgs, e.captionTemp)
	if err != nil {
		return nil, err
	}

	doc := decode.Value[map[string]any](e.decoder, raw, nil)
	if doc == nil {
		return nil, decode.ErrUnrecoverable
	}
	items, ok := doc["posts"].([]any)
	if !ok {
		return nil, errors.New("enhance: completion has no posts array")
	}

	entries := make(map[int]captionEntry, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		idx, ok := asIndex(m["index"])
		if !ok {
			continue
		}
		if _, dup := entries[idx]; dup {
			continue
		}
		entries[idx] = captionEntry{
			caption:     stringField(m, "caption"),
			personality: stringField(m, "personality"),
			mood:        stringField(m, "mood"),
		}
	}
	return entries, nil
}

func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ParseTheme validates loosely decoded model output. Every field must be a
// non-empty string, colors must be CSS hex colors and the enums must name a
// known member; enums are matched case-insensitively and normalized.
func ParseTheme(fields map[string]any) (Theme, error) {
	var errs []error
	get := func(key string) string {
		v, ok := fields[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%s: missing", key))
			return ""
		}
		s, ok := v.(string)
		if !ok {
			errs = append(errs, fmt.Errorf("%s: not a string", key))
			return ""
		}
		s = strings.TrimSpace(s)
		if s == "" {
			errs = append(errs, fmt.Errorf("%s: empty", key))
		}
		return s
	}
	color := func(key string) string {
		s := get(key)
		if s != "" && !hexColor.MatchString(s) {
			errs = append(errs, fmt.Errorf("%s: %q is not a hex color", key, s))
		}
		return s
	}
	enum := func(key string, allowed []string) string {
		s := strings.ToLower(get(key))
		if s != "" && !slices.Contains(allowed, s) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %v", key, s, allowed))
		}
		return s
	}

	t := Theme{
		PrimaryColor:    color("primaryColor"),
		SecondaryColor:  color("secondaryColor"),
		AccentColor:     color("accentColor"),
		BackgroundColor: color("backgroundColor"),
		TextColor:       color("textColor"),
		FontFamily:      get("fontFamily"),
		BorderRadius:    get("borderRadius"),
		LayoutStyle:     enum("layoutStyle", Layouts),
		Mood:            get("mood"),
		Animation:       enum("animation", Animations),
	}
	if err := errors.Join(errs...); err != nil {
		return Theme{}, fmt.Errorf("invalid theme: %w", err)
	}
	return t, nil
}

func (e *Enhancer) defaultTheme() Theme {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DefaultThemes[e.rng.IntN(len(DefaultThemes))]
}

func (e *Enhancer) defaultCaption() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return DefaultCaptions[e.rng.IntN(len(DefaultCaptions))]
}

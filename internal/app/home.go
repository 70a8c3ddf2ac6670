package app

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quirkfeed/internal/enhance"
)

type homePage struct {
	Theme          enhance.Theme
	Posts          []enhance.EnhancedPost
	FeedError      string
	Cached         bool
	Limit          int
	RefreshSeconds int
}

var homeTemplate = template.Must(template.New("home").Funcs(template.FuncMap{
	"contrast":       enhance.ContrastColor,
	"animationClass": enhance.AnimationClass,
	"fontURL":        enhance.FontStylesheetURL,
}).Parse(homeHTML))

// loadHome refreshes the feed and the theme concurrently. A failure or
// panic on one side never blocks the other.
func (s *Server) loadHome(ctx context.Context, limit int) homePage {
	var (
		page              homePage
		feedErr, themeErr error
		g                 errgroup.Group
	)
	g.Go(guard(&feedErr, func() (err error) {
		page.Posts, page.Cached, err = s.feed.Load(ctx, limit)
		return err
	}))
	g.Go(guard(&themeErr, func() (err error) {
		page.Theme, _, err = s.theme.Load(ctx)
		return err
	}))
	_ = g.Wait()

	if feedErr != nil {
		s.log.Warn("Home page feed unavailable", zap.Error(feedErr))
		page.FeedError = feedErr.Error()
	}
	if themeErr != nil {
		s.log.Warn("Home page theme unavailable", zap.Error(themeErr))
		page.Theme = enhance.DefaultThemes[0]
	}
	return page
}

// guard runs fn, storing its error or recovered panic in errp.
func guard(errp *error, fn func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				*errp = fmt.Errorf("panic: %v", r)
			}
		}()
		*errp = fn()
		return nil
	}
}

// handleHome renders the themed feed page.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) error {
	limit := ParseLimit(r.URL.Query().Get("limit"))
	page := s.loadHome(r.Context(), limit)
	page.Limit = limit
	page.RefreshSeconds = int(s.cfg.Server.HomeRefresh.Seconds())

	var buf bytes.Buffer
	if err := homeTemplate.Execute(&buf, page); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
	return nil
}

const homeHTML = `<!DOCTYPE html>
<html lang="en" data-layout="{{.Theme.LayoutStyle}}" data-animation="{{.Theme.Animation}}">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>quirkfeed - {{.Theme.Mood}}</title>
	{{with .RefreshSeconds}}<meta http-equiv="refresh" content="{{.}}">{{end}}
	{{with fontURL .Theme.FontFamily}}<link rel="stylesheet" href="{{.}}">{{end}}
	<style>
		:root {
			--primary-color: {{.Theme.PrimaryColor}};
			--secondary-color: {{.Theme.SecondaryColor}};
			--accent-color: {{.Theme.AccentColor}};
			--background-color: {{.Theme.BackgroundColor}};
			--text-color: {{.Theme.TextColor}};
			--border-radius: {{.Theme.BorderRadius}};
			--font-family: "{{.Theme.FontFamily}}";
		}
		* { margin: 0; padding: 0; box-sizing: border-box; }
		body {
			font-family: var(--font-family), system-ui, sans-serif;
			background: var(--background-color);
			color: var(--text-color);
			min-height: 100vh;
			padding: 20px;
		}
		h1 {
			font-size: 3em;
			color: var(--primary-color);
			text-align: center;
			text-shadow: 3px 3px 0 var(--secondary-color);
		}
		.mood { text-align: center; color: var(--accent-color); margin-bottom: 30px; }
		.feed { display: grid; gap: 20px; grid-template-columns: repeat(auto-fill, minmax(280px, 1fr)); }
		[data-layout="list"] .feed { grid-template-columns: 1fr; max-width: 700px; margin: 0 auto; }
		[data-layout="masonry"] .feed { display: block; columns: 280px; }
		[data-layout="masonry"] .post { break-inside: avoid; margin-bottom: 20px; }
		.post {
			border: 3px solid var(--primary-color);
			border-radius: var(--border-radius);
			overflow: hidden;
			background: var(--secondary-color);
		}
		.post img { width: 100%; display: block; }
		.post .body { padding: 12px; }
		.caption { font-size: 1.2em; font-weight: bold; }
		.persona { font-style: italic; opacity: 0.8; }
		.meta { font-size: 0.8em; margin-top: 8px; }
		.meta a { color: inherit; }
		.empty { text-align: center; font-size: 1.4em; }
		.reroll { display: block; width: fit-content; margin: 0 auto 20px; padding: 8px 16px; border-radius: var(--border-radius); background: var(--accent-color); color: {{contrast .Theme.AccentColor}}; text-decoration: none; }
		@keyframes glitch { 0% { transform: translate(0); } 33% { transform: translate(-2px, 2px); } 66% { transform: translate(2px, -2px); } 100% { transform: translate(0); } }
		@keyframes fade-in { from { opacity: 0; } to { opacity: 1; } }
		.animate-glitch { animation: glitch 0.3s infinite; }
		.animate-chaos { animation: glitch 0.15s infinite alternate; }
		.animate-fade-in, .animate-bounce-in, .animate-slide-in { animation: fade-in 0.6s ease-out; }
	</style>
</head>
<body>
	<h1 class="{{animationClass .Theme.Animation}}">quirkfeed</h1>
	<p class="mood">current mood: {{.Theme.Mood}}</p>
	<a class="reroll" href="/?limit={{.Limit}}">re-roll</a>
	{{if .FeedError}}
	<p class="empty">The feed is hiding from us right now. Try again in a moment.</p>
	{{else}}
	<main class="feed">
		{{range .Posts}}
		<article class="post">
			{{if .ImageURL}}<img src="{{.ImageURL}}" alt="{{.Title}}" loading="lazy">{{end}}
			<div class="body" style="color: {{contrast $.Theme.SecondaryColor}}">
				<p class="caption">{{.AICaption}}</p>
				<p class="persona">{{.AIPersonality}} &middot; {{.Mood}}</p>
				<p class="meta"><a href="{{.Permalink}}" rel="noopener">{{.Title}}</a> in r/{{.Subreddit}} by {{.Author}}</p>
			</div>
		</article>
		{{end}}
	</main>
	{{end}}
</body>
</html>`

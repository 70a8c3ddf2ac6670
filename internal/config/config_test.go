package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.EnableAdmin {
		t.Error("admin endpoints enabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quirkfeed.yaml")
	data := `
server:
  addr: ":9090"
cache:
  theme_ttl: 10m
  feed_ttl: 90s
reddit:
  channels: [hmmm, Pareidolia]
openai:
  model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Cache.ThemeTTL != 10*time.Minute || cfg.Cache.FeedTTL != 90*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.Reddit.Channels, []string{"hmmm", "Pareidolia"}) || cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("cfg = %+v", cfg)
	}
	// untouched sections keep defaults
	if cfg.Reddit.ChannelsPerFetch != 5 || cfg.OpenAI.ThemeTemperature != 1.8 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("cache:\n  feed_ttl: forever\n"), 0o600)
	if _, err := LoadFile(path); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("QUIRKFEED_FEED_TTL", "30s")
	t.Setenv("QUIRKFEED_CHANNELS", "hmmm, ATBGE ,")
	t.Setenv("QUIRKFEED_RSS_FALLBACK", "false")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("APP_ENV", "production")
	t.Setenv("QUIRKFEED_ENABLE_ADMIN", "true")
	t.Setenv("QUIRKFEED_HOME_REFRESH", "0s")

	cfg := Default()
	if err := ApplyEnv(cfg); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Server.Addr != ":3000" || cfg.Cache.FeedTTL != 30*time.Second || cfg.Reddit.RSSFallback || !cfg.Server.EnableAdmin {
		t.Errorf("cfg = %+v", cfg)
	}
	if !slices.Equal(cfg.Reddit.Channels, []string{"hmmm", "ATBGE"}) {
		t.Errorf("channels = %v", cfg.Reddit.Channels)
	}
	if cfg.OpenAI.APIKey != "sk-env" || cfg.Log.Env != "production" || cfg.Server.HomeRefresh != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv("QUIRKFEED_THEME_TTL", "soon")
	t.Setenv("QUIRKFEED_PROBE_LINKS", "maybe")

	err := ApplyEnv(Default())
	if err == nil || !strings.Contains(err.Error(), "QUIRKFEED_THEME_TTL") || !strings.Contains(err.Error(), "QUIRKFEED_PROBE_LINKS") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"theme shorter than feed": func(c *Config) { c.Cache.ThemeTTL = time.Minute; c.Cache.FeedTTL = 2 * time.Minute },
		"zero ttl":                func(c *Config) { c.Cache.FeedTTL = 0 },
		"no addr":                 func(c *Config) { c.Server.Addr = "" },
		"no timeout":              func(c *Config) { c.Server.UpstreamTimeout = 0 },
		"no channels per fetch":   func(c *Config) { c.Reddit.ChannelsPerFetch = 0 },
		"hot temperature":         func(c *Config) { c.OpenAI.CaptionTemperature = 2.5 },
		"negative home refresh":   func(c *Config) { c.Server.HomeRefresh = -time.Second },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := Default()
	cfg.Cache.ThemeTTL = cfg.Cache.FeedTTL
	if err := cfg.Validate(); err != nil {
		t.Errorf("equal ttls rejected: %v", err)
	}
}

// Package config loads server settings from defaults, an optional YAML
// file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// EnableAdmin exposes the unauthenticated /admin/cache endpoints.
	EnableAdmin     bool          `yaml:"enable_admin"`
	// HomeRefresh reloads the home page on this interval; zero disables it.
	HomeRefresh     time.Duration `yaml:"home_refresh"`
}

// CacheConfig holds per-domain freshness windows
type CacheConfig struct {
	ThemeTTL        time.Duration `yaml:"theme_ttl"`
	FeedTTL         time.Duration `yaml:"feed_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedditConfig holds content source settings
type RedditConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Channels         []string      `yaml:"channels"`
	ChannelsPerFetch int           `yaml:"channels_per_fetch"`
	RSSFallback      bool          `yaml:"rss_fallback"`
	ProbeLinks       bool          `yaml:"probe_links"`
	UserAgent        string        `yaml:"user_agent"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RetryMax         int           `yaml:"retry_max"`
}

// OpenAIConfig holds generative model settings
type OpenAIConfig struct {
	APIKey             string  `yaml:"api_key"`
	Model              string  `yaml:"model"`
	BaseURL            string  `yaml:"base_url"`
	ThemeTemperature   float64 `yaml:"theme_temperature"`
	CaptionTemperature float64 `yaml:"caption_temperature"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Config is the central configuration struct
type Config struct {
	Server ServerConfig `yaml:"server"`
	Cache  CacheConfig  `yaml:"cache"`
	Reddit RedditConfig `yaml:"reddit"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			UpstreamTimeout: 30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			HomeRefresh:     45 * time.Second,
		},
		Cache: CacheConfig{
			ThemeTTL:        5 * time.Minute,
			FeedTTL:         2 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Reddit: RedditConfig{
			BaseURL:          "https://old.reddit.com",
			ChannelsPerFetch: 5,
			RSSFallback:      true,
			ProbeLinks:       true,
			UserAgent:        "Mozilla/5.0 (compatible; quirkfeed/1.0)",
			RequestTimeout:   10 * time.Second,
			RetryMax:         2,
		},
		OpenAI: OpenAIConfig{
			Model:              "gpt-4-turbo-preview",
			BaseURL:            "https://api.openai.com/v1",
			ThemeTemperature:   1.8,
			CaptionTemperature: 1.9,
		},
		Log: LogConfig{
			Env:   "development",
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file over the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment variable overrides to the config
func ApplyEnv(cfg *Config) error {
	var errs []error
	duration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + v
	}
	if v := os.Getenv("QUIRKFEED_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	duration("QUIRKFEED_UPSTREAM_TIMEOUT", &cfg.Server.UpstreamTimeout)
	boolean("QUIRKFEED_ENABLE_ADMIN", &cfg.Server.EnableAdmin)
	duration("QUIRKFEED_HOME_REFRESH", &cfg.Server.HomeRefresh)
	duration("QUIRKFEED_THEME_TTL", &cfg.Cache.ThemeTTL)
	duration("QUIRKFEED_FEED_TTL", &cfg.Cache.FeedTTL)
	if v := os.Getenv("QUIRKFEED_REDDIT_BASE_URL"); v != "" {
		cfg.Reddit.BaseURL = v
	}
	if v := os.Getenv("QUIRKFEED_CHANNELS"); v != "" {
		cfg.Reddit.Channels = splitList(v)
	}
	boolean("QUIRKFEED_RSS_FALLBACK", &cfg.Reddit.RSSFallback)
	boolean("QUIRKFEED_PROBE_LINKS", &cfg.Reddit.ProbeLinks)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("QUIRKFEED_OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("QUIRKFEED_OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Log.Env = v
	}
	if v := os.Getenv("QUIRKFEED_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return errors.Join(errs...)
}

// Validate reports every setting that cannot be served
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("server.upstream_timeout must be positive"))
	}
	if c.Server.HomeRefresh < 0 {
		errs = append(errs, errors.New("server.home_refresh must not be negative"))
	}
	if c.Cache.ThemeTTL <= 0 || c.Cache.FeedTTL <= 0 {
		errs = append(errs, errors.New("cache ttls must be positive"))
	}
	if c.Cache.ThemeTTL < c.Cache.FeedTTL {
		errs = append(errs, fmt.Errorf("cache.theme_ttl (%s) must not be shorter than cache.feed_ttl (%s)", c.Cache.ThemeTTL, c.Cache.FeedTTL))
	}
	if c.Reddit.ChannelsPerFetch < 1 {
		errs = append(errs, errors.New("reddit.channels_per_fetch must be at least 1"))
	}
	if c.OpenAI.ThemeTemperature < 0 || c.OpenAI.ThemeTemperature > 2 ||
		c.OpenAI.CaptionTemperature < 0 || c.OpenAI.CaptionTemperature > 2 {
		errs = append(errs, errors.New("openai temperatures must be within [0, 2]"))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

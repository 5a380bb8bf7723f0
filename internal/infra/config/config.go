// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Resolver ResolverConfig `yaml:"resolver"`
	Player   PlayerConfig   `yaml:"player"`
	Playback PlaybackConfig `yaml:"playback"`
	Queue    QueueConfig    `yaml:"queue"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
// Typical use is preparing the host audio output before the first item plays.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
// An empty token leaves Skip open to every caller.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// ResolverConfig represents the resolver chain configuration.
type ResolverConfig struct {
	EmbedFallback *bool           `yaml:"embed_fallback" default:"true"`
	Probe         ProbeConfig     `yaml:"probe"`
	Ytdlp         YtdlpConfig     `yaml:"ytdlp"`
	Invidious     InvidiousConfig `yaml:"invidious"`
	Tiers         []TierConfig    `yaml:"tiers" validate:"dive"`
}

// ProbeConfig represents the stream reachability probe configuration.
type ProbeConfig struct {
	Enabled    *bool  `yaml:"enabled" default:"true"`
	TimeoutSec int    `yaml:"timeout_sec" default:"5" validate:"gte=1,lte=60"`
	RangeBytes int    `yaml:"range_bytes" default:"1000" validate:"gte=1"`
	UserAgent  string `yaml:"user_agent"`
}

// YtdlpConfig represents the yt-dlp binary configuration shared by extraction tiers.
type YtdlpConfig struct {
	Path       string `yaml:"path" default:"yt-dlp"`
	TimeoutSec int    `yaml:"timeout_sec" default:"30" validate:"gte=1,lte=600"`
}

// InvidiousConfig represents the proxy API configuration.
// Empty instances fall back to the built-in list.
type InvidiousConfig struct {
	Instances   []string `yaml:"instances" validate:"dive,url"`
	TimeoutSec  int      `yaml:"timeout_sec" default:"10" validate:"gte=1,lte=60"`
	MaxAttempts int      `yaml:"max_attempts" default:"2" validate:"gte=1"`
}

// TierConfig represents a single resolver tier configuration.
type TierConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=ytdlp invidious"`
	Name     string         `yaml:"name" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// PlayerConfig represents the player engine configuration.
type PlayerConfig struct {
	Engine           string         `yaml:"engine" default:"process" validate:"oneof=process mpd"`
	Settings         map[string]any `yaml:"settings"`
	NetworkCachingMs int            `yaml:"network_caching_ms" default:"3000" validate:"gte=0"`
	FileCachingMs    int            `yaml:"file_caching_ms" default:"3000" validate:"gte=0"`
	Normalize        *bool          `yaml:"normalize" default:"true"`
	Volume           int            `yaml:"volume" default:"100" validate:"gte=0,lte=100"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	DefaultDurationSec int `yaml:"default_duration_sec" default:"300" validate:"gte=1"`
	PollIntervalMs     int `yaml:"poll_interval_ms" default:"5000" validate:"gte=10,lte=60000"`
	IdleIntervalMs     int `yaml:"idle_interval_ms" default:"1000" validate:"gte=10,lte=60000"`
	SettleMs           int `yaml:"settle_ms" default:"3000" validate:"gte=0,lte=30000"`
	RetrySettleMs      int `yaml:"retry_settle_ms" default:"2000" validate:"gte=0,lte=30000"`
	EventBufferSize    int `yaml:"event_buffer_size" default:"100" validate:"gte=1"`
}

// QueueConfig represents queue store configuration.
type QueueConfig struct {
	HistorySize int `yaml:"history_size" default:"20" validate:"gte=1,lte=1000"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if len(cfg.Resolver.Tiers) == 0 {
		cfg.Resolver.Tiers = DefaultTiers()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() (*Config, error) {
	return Parse([]byte("{}"))
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("JUKEBOX_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MPD_PASSWORD"); v != "" {
		if c.Player.Settings == nil {
			c.Player.Settings = map[string]any{}
		}
		c.Player.Settings["password"] = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool, len(c.Resolver.Tiers))
	for i, t := range c.Resolver.Tiers {
		if seen[t.Name] {
			return errors.Newf("duplicate tier name: %s (tier index %d)", t.Name, i)
		}
		seen[t.Name] = true
	}

	return nil
}

// EmbedFallbackEnabled reports whether the embed page fallback is on.
func (r ResolverConfig) EmbedFallbackEnabled() bool {
	return r.EmbedFallback == nil || *r.EmbedFallback
}

// ProbeEnabled reports whether stream URLs are probed before use.
func (r ResolverConfig) ProbeEnabled() bool {
	return r.Probe.Enabled == nil || *r.Probe.Enabled
}

// NormalizeEnabled reports whether loudness normalization is requested.
func (p PlayerConfig) NormalizeEnabled() bool {
	return p.Normalize == nil || *p.Normalize
}

// Duration helpers

func (p ProbeConfig) Timeout() time.Duration     { return time.Duration(p.TimeoutSec) * time.Second }
func (y YtdlpConfig) Timeout() time.Duration     { return time.Duration(y.TimeoutSec) * time.Second }
func (i InvidiousConfig) Timeout() time.Duration { return time.Duration(i.TimeoutSec) * time.Second }

func (p PlaybackConfig) DefaultDuration() time.Duration {
	return time.Duration(p.DefaultDurationSec) * time.Second
}
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}
func (p PlaybackConfig) IdleInterval() time.Duration {
	return time.Duration(p.IdleIntervalMs) * time.Millisecond
}
func (p PlaybackConfig) Settle() time.Duration {
	return time.Duration(p.SettleMs) * time.Millisecond
}
func (p PlaybackConfig) RetrySettle() time.Duration {
	return time.Duration(p.RetrySettleMs) * time.Millisecond
}

// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	LinkedIn   LinkedInConfig   `mapstructure:"linkedin"`
	APIs       APIConfig        `mapstructure:"apis"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs crawl pacing and retry behavior.
type ScraperConfig struct {
	DelayMinSeconds int `mapstructure:"delay_min_seconds"`
	DelayMaxSeconds int `mapstructure:"delay_max_seconds"`
	MaxRetries      int `mapstructure:"max_retries"`
	NavTimeoutSec   int `mapstructure:"nav_timeout_seconds"`
	DefaultPages    int `mapstructure:"default_pages"`
	Concurrency     int `mapstructure:"concurrency"`
	QueueDepth      int `mapstructure:"queue_depth"`
}

// BrowserConfig configures the headless browser sessions.
type BrowserConfig struct {
	Headless bool   `mapstructure:"headless"`
	UseProxy bool   `mapstructure:"use_proxy"`
	ProxyURL string `mapstructure:"proxy_url"`
}

// CheckpointConfig sets where resumable crawl snapshots live.
type CheckpointConfig struct {
	Dir string `mapstructure:"dir"`
}

// LinkedInConfig holds the session cookie used for authenticated scraping.
type LinkedInConfig struct {
	Cookie string `mapstructure:"cookie"`
}

// APIConfig holds keys and limits for the API-backed searchers. Empty keys
// disable the corresponding searcher.
type APIConfig struct {
	SerperKey      string `mapstructure:"serper_key"`
	JSearchKey     string `mapstructure:"jsearch_key"`
	ScrapingBeeKey string `mapstructure:"scrapingbee_key"`
	ResultLimit    int    `mapstructure:"result_limit"`
}

// DBConfig controls access to Postgres. An empty DSN selects the in-memory
// stores.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// RedisConfig controls the cross-session seen-URL filter. An empty URL
// disables it.
type RedisConfig struct {
	URL          string `mapstructure:"url"`
	SeenTTLHours int    `mapstructure:"seen_ttl_hours"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.delay_min_seconds", 2)
	v.SetDefault("scraper.delay_max_seconds", 5)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.nav_timeout_seconds", 30)
	v.SetDefault("scraper.default_pages", 3)
	v.SetDefault("scraper.concurrency", 2)
	v.SetDefault("scraper.queue_depth", 16)
	v.SetDefault("browser.headless", true)
	v.SetDefault("checkpoint.dir", "checkpoints")
	v.SetDefault("apis.result_limit", 100)
	v.SetDefault("redis.seen_ttl_hours", 720)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.DelayMinSeconds <= 0 {
		return fmt.Errorf("scraper.delay_min_seconds must be > 0")
	}
	if c.Scraper.DelayMaxSeconds < c.Scraper.DelayMinSeconds {
		return fmt.Errorf("scraper.delay_max_seconds must be >= scraper.delay_min_seconds")
	}
	if c.Scraper.MaxRetries <= 0 {
		return fmt.Errorf("scraper.max_retries must be > 0")
	}
	if c.Browser.UseProxy && c.Browser.ProxyURL == "" {
		return fmt.Errorf("browser.proxy_url must be set when browser.use_proxy is enabled")
	}
	if c.Checkpoint.Dir == "" {
		return fmt.Errorf("checkpoint.dir must be set")
	}
	return nil
}

// DelayMin returns the minimum inter-request pause as a duration.
func (c Config) DelayMin() time.Duration {
	return time.Duration(c.Scraper.DelayMinSeconds) * time.Second
}

// DelayMax returns the maximum inter-request pause as a duration.
func (c Config) DelayMax() time.Duration {
	return time.Duration(c.Scraper.DelayMaxSeconds) * time.Second
}

// NavTimeout returns the per-navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scraper.NavTimeoutSec) * time.Second
}

// SeenTTL returns the Redis seen-URL TTL as a duration.
func (c Config) SeenTTL() time.Duration {
	return time.Duration(c.Redis.SeenTTLHours) * time.Hour
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
scraper:
  delay_min_seconds: 3
  delay_max_seconds: 7
  max_retries: 5
  nav_timeout_seconds: 45
  default_pages: 4
browser:
  headless: false
  use_proxy: true
  proxy_url: http://proxy.local:8888
checkpoint:
  dir: /var/lib/jobscout/checkpoints
linkedin:
  cookie: li-cookie-value
apis:
  serper_key: serper-secret
  jsearch_key: jsearch-secret
  result_limit: 50
db:
  dsn: postgres://jobscout@localhost/jobscout
redis:
  url: redis://localhost:6379/0
  seen_ttl_hours: 24
logging:
  development: true
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Scraper.MaxRetries != 5 || cfg.Scraper.DefaultPages != 4 {
		t.Fatalf("expected scraper overrides to apply: %+v", cfg.Scraper)
	}
	if !cfg.Browser.UseProxy || cfg.Browser.ProxyURL != "http://proxy.local:8888" {
		t.Fatalf("expected browser proxy settings: %+v", cfg.Browser)
	}
	if cfg.LinkedIn.Cookie != "li-cookie-value" {
		t.Fatalf("expected linkedin cookie to load")
	}
	if cfg.APIs.SerperKey != "serper-secret" || cfg.APIs.ResultLimit != 50 {
		t.Fatalf("expected api config: %+v", cfg.APIs)
	}
	if got := cfg.DelayMin(); got != 3*time.Second {
		t.Fatalf("expected delay min 3s, got %v", got)
	}
	if got := cfg.DelayMax(); got != 7*time.Second {
		t.Fatalf("expected delay max 7s, got %v", got)
	}
	if got := cfg.NavTimeout(); got != 45*time.Second {
		t.Fatalf("expected nav timeout 45s, got %v", got)
	}
	if got := cfg.SeenTTL(); got != 24*time.Hour {
		t.Fatalf("expected seen ttl 24h, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scraper.DelayMinSeconds != 2 || cfg.Scraper.DelayMaxSeconds != 5 {
		t.Fatalf("expected default delays, got %+v", cfg.Scraper)
	}
	if !cfg.Browser.Headless {
		t.Fatalf("expected headless by default")
	}
	if cfg.Checkpoint.Dir != "checkpoints" {
		t.Fatalf("expected default checkpoint dir, got %q", cfg.Checkpoint.Dir)
	}
	if cfg.Scraper.Concurrency != 2 || cfg.Scraper.QueueDepth != 16 {
		t.Fatalf("expected default worker pool sizing, got %+v", cfg.Scraper)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Scraper: ScraperConfig{
			DelayMinSeconds: 2,
			DelayMaxSeconds: 5,
			MaxRetries:      3,
		},
		Checkpoint: CheckpointConfig{Dir: "checkpoints"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid delay min",
			cfg: func() Config {
				c := base
				c.Scraper.DelayMinSeconds = 0
				return c
			}(),
			want: "scraper.delay_min_seconds",
		},
		{
			name: "delay max below min",
			cfg: func() Config {
				c := base
				c.Scraper.DelayMaxSeconds = 1
				return c
			}(),
			want: "scraper.delay_max_seconds",
		},
		{
			name: "invalid retries",
			cfg: func() Config {
				c := base
				c.Scraper.MaxRetries = 0
				return c
			}(),
			want: "scraper.max_retries",
		},
		{
			name: "proxy enabled without url",
			cfg: func() Config {
				c := base
				c.Browser.UseProxy = true
				return c
			}(),
			want: "browser.proxy_url",
		},
		{
			name: "missing checkpoint dir",
			cfg: func() Config {
				c := base
				c.Checkpoint.Dir = ""
				return c
			}(),
			want: "checkpoint.dir",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

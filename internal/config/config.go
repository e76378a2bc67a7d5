package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lotas/tradersecho/internal/types"
)

// Config holds everything the client needs to reach the backend and where to
// keep its local state. Values come from defaults, then the YAML file, then
// TRADERSECHO_* environment variables; command-line flags are applied last by
// the caller.
type Config struct {
	APIBase string `yaml:"api_base" env:"TRADERSECHO_API_BASE"`
	DataDir string `yaml:"data_dir" env:"TRADERSECHO_DATA_DIR"`

	// Window is the aggregation window requested for pro snapshots.
	Window string `yaml:"window" env:"TRADERSECHO_WINDOW"`

	// Initial free list filter.
	Tickers []string `yaml:"tickers" env:"TRADERSECHO_TICKERS" envSeparator:","`
	Limit   int      `yaml:"limit" env:"TRADERSECHO_LIMIT"`
	Sort    string   `yaml:"sort" env:"TRADERSECHO_SORT"`

	// MeInterval is how often the TUI re-resolves entitlement. Zero disables it.
	MeInterval time.Duration `yaml:"me_interval" env:"TRADERSECHO_ME_INTERVAL"`

	// BaselineGrace is how long the pro channel waits for its baseline
	// snapshot before opening the push subscription anyway.
	BaselineGrace time.Duration `yaml:"baseline_grace" env:"TRADERSECHO_BASELINE_GRACE"`

	// RequestTimeout caps one-shot auth and billing calls. Data requests are
	// not bounded by it; they are cancelled by their channel instead.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"TRADERSECHO_REQUEST_TIMEOUT"`

	Retry Retry `yaml:"retry" envPrefix:"TRADERSECHO_RETRY_"`
}

// Retry configures reconnection of the push subscription.
type Retry struct {
	Initial     time.Duration `yaml:"initial" env:"INITIAL"`
	Max         time.Duration `yaml:"max" env:"MAX"`
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBase:        "http://127.0.0.1:8000",
		DataDir:        defaultDataDir(),
		Window:         "5m",
		Limit:          types.DefaultLimit,
		Sort:           string(types.SortInterest),
		MeInterval:     60 * time.Second,
		BaselineGrace:  5 * time.Second,
		RequestTimeout: 15 * time.Second,
		Retry: Retry{
			Initial:     time.Second,
			Max:         30 * time.Second,
			MaxAttempts: 8,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "tradersecho")
	}
	return filepath.Join(home, ".local", "share", "tradersecho")
}

// DefaultPath returns the config file location: TRADERSECHO_CONFIG if set,
// otherwise ~/.config/tradersecho/config.yaml.
func DefaultPath() string {
	if p := os.Getenv("TRADERSECHO_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tradersecho", "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path (a missing file
// is not an error) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base must be an http(s) URL, got %q", c.APIBase)
	}
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Window == "" {
		return errors.New("window is required")
	}
	if c.MeInterval < 0 || c.BaselineGrace < 0 || c.RequestTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	if c.Retry.Initial <= 0 || c.Retry.Max < c.Retry.Initial {
		return fmt.Errorf("retry: need 0 < initial <= max, got %s/%s", c.Retry.Initial, c.Retry.Max)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// Filter returns the initial free list filter.
func (c *Config) Filter() types.Filter {
	return types.Filter{
		Tickers: c.Tickers,
		Limit:   c.Limit,
		Sort:    types.SortKey(c.Sort),
	}.Normalize()
}

// DBPath is the SQLite database inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "tradersecho.db")
}

// LogDir is where applog writes.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

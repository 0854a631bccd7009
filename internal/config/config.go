package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sectorwatch/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for sectorwatch.
type Config struct {
	Gateway   Gateway   `yaml:"gateway"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Dashboard Dashboard `yaml:"dashboard"`
	Logging   Logging   `yaml:"logging"`
}

// Gateway holds the REST gateway endpoint and the terminal credentials.
type Gateway struct {
	BaseURL          string        `yaml:"base_url"`
	APIKey           string        `yaml:"api_key"`
	APIHost          string        `yaml:"api_host"`
	Login            string        `yaml:"login"`
	Password         string        `yaml:"password"`
	Server           string        `yaml:"server"`
	Timeout          time.Duration `yaml:"timeout"`
	ConnectTimeoutMS int           `yaml:"connect_timeout_ms"`
}

// RateLimit controls request spacing and the 429 retry policy.
type RateLimit struct {
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	MaxAttempts        int           `yaml:"max_attempts"`
	BaseDelay          time.Duration `yaml:"base_delay"`
	DefaultRetryAfter  time.Duration `yaml:"default_retry_after"`
}

// Dashboard controls the polling loop and what it tracks.
type Dashboard struct {
	RefreshInterval time.Duration   `yaml:"refresh_interval"`
	SectorPause     time.Duration   `yaml:"sector_pause"`
	Benchmark       string          `yaml:"benchmark"`
	Sectors         []domain.Sector `yaml:"sectors"`
	MarketHoursOnly bool            `yaml:"market_hours_only"`
	MarketMIC       string          `yaml:"market_mic"`
	Color           bool            `yaml:"color"`
	HistorySize     int             `yaml:"history_size"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultSectors is the sector ETF line-up tracked when the configuration
// does not name one. Technology uses the NASDAQ-100 as a proxy.
var DefaultSectors = []domain.Sector{
	{Name: "Financials", Symbol: "XLF.NYSE"},
	{Name: "Energy", Symbol: "XLE.NYSE"},
	{Name: "Industrials", Symbol: "XLI.NYSE"},
	{Name: "Consumer Staples", Symbol: "XLP.NYSE"},
	{Name: "Utilities", Symbol: "XLU.NYSE"},
	{Name: "Healthcare", Symbol: "XLV.NYSE"},
	{Name: "Technology", Symbol: "USTEC"},
}

// Default returns a Config populated with every default value and no
// credentials.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load builds the configuration. It first loads a .env file from the working
// directory if one exists, then reads the YAML file at path (a missing file
// is fine), applies environment variable overrides, fills defaults for
// whatever is still unset, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	g := &cfg.Gateway
	if g.BaseURL == "" {
		g.BaseURL = "https://metasyc.p.rapidapi.com"
	}
	if g.APIHost == "" {
		g.APIHost = strings.TrimPrefix(strings.TrimPrefix(g.BaseURL, "https://"), "http://")
	}
	if g.Timeout == 0 {
		g.Timeout = 15 * time.Second
	}
	if g.ConnectTimeoutMS == 0 {
		g.ConnectTimeoutMS = 10000
	}

	r := &cfg.RateLimit
	if r.MinRequestInterval == 0 {
		r.MinRequestInterval = time.Second
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 4
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = time.Second
	}
	if r.DefaultRetryAfter == 0 {
		r.DefaultRetryAfter = 5 * time.Second
	}

	d := &cfg.Dashboard
	if d.RefreshInterval == 0 {
		d.RefreshInterval = 300 * time.Second
	}
	if d.SectorPause == 0 {
		d.SectorPause = 500 * time.Millisecond
	}
	if d.Benchmark == "" {
		d.Benchmark = "US500"
	}
	if len(d.Sectors) == 0 {
		d.Sectors = append([]domain.Sector(nil), DefaultSectors...)
	}
	if d.MarketMIC == "" {
		d.MarketMIC = "xnys"
	}
	if d.HistorySize == 0 {
		d.HistorySize = 288
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("RAPIDAPI_HOST"); v != "" {
		cfg.Gateway.APIHost = v
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}

	if v := os.Getenv("MT5_LOGIN"); v != "" {
		cfg.Gateway.Login = v
	}
	if v := os.Getenv("MT5_PASSWORD"); v != "" {
		cfg.Gateway.Password = v
	}
	if v := os.Getenv("MT5_SERVER"); v != "" {
		cfg.Gateway.Server = v
	}

	if v := os.Getenv("REFRESH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing REFRESH_INTERVAL %q: %w", v, err)
		}
		cfg.Dashboard.RefreshInterval = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports every missing credential at once, then checks the
// remaining settings.
func (c *Config) Validate() error {
	var missing []string
	if c.Gateway.APIKey == "" {
		missing = append(missing, "RAPIDAPI_KEY")
	}
	if c.Gateway.Login == "" {
		missing = append(missing, "MT5_LOGIN")
	}
	if c.Gateway.Password == "" {
		missing = append(missing, "MT5_PASSWORD")
	}
	if c.Gateway.Server == "" {
		missing = append(missing, "MT5_SERVER")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}

	if _, err := strconv.ParseInt(c.Gateway.Login, 10, 64); err != nil {
		return fmt.Errorf("MT5_LOGIN must be an integer, got %q", c.Gateway.Login)
	}
	if c.RateLimit.MinRequestInterval < 0 {
		return fmt.Errorf("rate_limit.min_request_interval cannot be negative")
	}
	if c.RateLimit.MaxAttempts < 1 {
		return fmt.Errorf("rate_limit.max_attempts must be at least 1")
	}
	if c.Dashboard.RefreshInterval <= 0 {
		return fmt.Errorf("dashboard.refresh_interval must be greater than 0")
	}
	if c.Dashboard.SectorPause < 0 {
		return fmt.Errorf("dashboard.sector_pause cannot be negative")
	}
	if c.Dashboard.Benchmark == "" {
		return fmt.Errorf("dashboard.benchmark cannot be empty")
	}
	for i, s := range c.Dashboard.Sectors {
		if s.Name == "" || s.Symbol == "" {
			return fmt.Errorf("dashboard.sectors[%d] needs both name and symbol", i)
		}
	}
	return nil
}

// Credentials returns the validated terminal credentials.
func (c *Config) Credentials() domain.Credentials {
	login, _ := strconv.ParseInt(c.Gateway.Login, 10, 64)
	return domain.Credentials{
		Login:    login,
		Password: c.Gateway.Password,
		Server:   c.Gateway.Server,
	}
}

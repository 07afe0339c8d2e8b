package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"xbt_book/internal/domain"
	"xbt_book/pkg/quant"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultStreamURL is the Luno market stream endpoint; the pair code is appended.
	DefaultStreamURL = "wss://ws.luno.com/api/1/stream/"
	// DefaultRestURL is the Luno trading API root.
	DefaultRestURL = "https://api.luno.com"
)

// Config holds every setting of the process. LoadConfig overrides secrets
// from the environment after parsing.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Market struct {
		Base    string `yaml:"base"`
		Counter string `yaml:"counter"`
	} `yaml:"market"`

	API struct {
		Luno struct {
			WSURL        string `yaml:"ws_url"`
			RestURL      string `yaml:"rest_url"`
			APIKeyID     string `yaml:"api_key_id"`
			APIKeySecret string `yaml:"api_key_secret"`
		} `yaml:"luno"`
	} `yaml:"api"`

	Engine struct {
		InboxSize int    `yaml:"inbox_size"`
		DumpPath  string `yaml:"dump_path"`
	} `yaml:"engine"`

	Trading struct {
		Enabled       bool            `yaml:"enabled"`
		Volume        decimal.Decimal `yaml:"volume"`
		NotMarketable bool            `yaml:"not_marketable"`
		CancelRetries int             `yaml:"cancel_retries"`
		// QuoteIntervalMS is the minimum pause between two reconciliations.
		QuoteIntervalMS int `yaml:"quote_interval_ms"`

		// Paper routes orders to an in-memory exchange seeded with these balances.
		Paper        bool            `yaml:"paper"`
		PaperBase    decimal.Decimal `yaml:"paper_base"`
		PaperCounter decimal.Decimal `yaml:"paper_counter"`
	} `yaml:"trading"`

	Ticker struct {
		LogIntervalMS int `yaml:"log_interval_ms"`
	} `yaml:"ticker"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the values used for keys missing from the file.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "xbt_book"
	cfg.Market.Base = string(quant.XBT)
	cfg.Market.Counter = string(quant.ZAR)
	cfg.API.Luno.WSURL = DefaultStreamURL
	cfg.API.Luno.RestURL = DefaultRestURL
	cfg.Engine.InboxSize = 1024
	cfg.Engine.DumpPath = "panic_dump.json"
	cfg.Trading.Volume = decimal.RequireFromString("0.0005")
	cfg.Trading.NotMarketable = true
	cfg.Trading.CancelRetries = 5
	cfg.Trading.QuoteIntervalMS = 1000
	cfg.Ticker.LogIntervalMS = 1000
	cfg.Storage.Path = "data/orders.db"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if _, err := quant.Currency(c.Market.Base).Places(); err != nil {
		return &domain.ConfigError{Field: "market.base", Err: err}
	}
	if _, err := quant.Currency(c.Market.Counter).Places(); err != nil {
		return &domain.ConfigError{Field: "market.counter", Err: err}
	}
	if c.Market.Base == c.Market.Counter {
		return &domain.ConfigError{Field: "market", Err: fmt.Errorf("base and counter must differ")}
	}

	ws := c.API.Luno.WSURL
	if !strings.HasPrefix(ws, "ws://") && !strings.HasPrefix(ws, "wss://") {
		return &domain.ConfigError{Field: "api.luno.ws_url", Err: fmt.Errorf("invalid websocket URL %q", ws)}
	}
	rest := c.API.Luno.RestURL
	if !strings.HasPrefix(rest, "http://") && !strings.HasPrefix(rest, "https://") {
		return &domain.ConfigError{Field: "api.luno.rest_url", Err: fmt.Errorf("invalid URL %q", rest)}
	}
	if c.API.Luno.APIKeyID == "" || c.API.Luno.APIKeySecret == "" {
		return &domain.ConfigError{Field: "api.luno", Err: fmt.Errorf("api key id and secret are required")}
	}

	if c.Engine.InboxSize <= 0 {
		return &domain.ConfigError{Field: "engine.inbox_size", Err: fmt.Errorf("must be positive")}
	}
	if c.Trading.Enabled && !c.Trading.Volume.IsPositive() {
		return &domain.ConfigError{Field: "trading.volume", Err: fmt.Errorf("must be positive")}
	}
	if c.Trading.CancelRetries < 0 {
		return &domain.ConfigError{Field: "trading.cancel_retries", Err: fmt.Errorf("must not be negative")}
	}
	if c.Trading.QuoteIntervalMS < 0 {
		return &domain.ConfigError{Field: "trading.quote_interval_ms", Err: fmt.Errorf("must not be negative")}
	}
	if c.Trading.Paper && (c.Trading.PaperBase.IsNegative() || c.Trading.PaperCounter.IsNegative()) {
		return &domain.ConfigError{Field: "trading.paper", Err: fmt.Errorf("balances must not be negative")}
	}
	if c.Ticker.LogIntervalMS <= 0 {
		return &domain.ConfigError{Field: "ticker.log_interval_ms", Err: fmt.Errorf("must be positive")}
	}
	return nil
}

// MarketPair returns the configured market.
func (c *Config) MarketPair() domain.Market {
	return domain.Market{Base: quant.Currency(c.Market.Base), Counter: quant.Currency(c.Market.Counter)}
}

// StreamURL returns the full stream endpoint for the configured pair.
func (c *Config) StreamURL() string {
	return strings.TrimSuffix(c.API.Luno.WSURL, "/") + "/" + c.MarketPair().Code()
}

// overrideWithEnv replaces settings with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if id := os.Getenv("LUNO_API_KEY_ID"); id != "" {
		cfg.API.Luno.APIKeyID = id
	}
	if secret := os.Getenv("LUNO_API_KEY_SECRET"); secret != "" {
		cfg.API.Luno.APIKeySecret = secret
	}
	if level := os.Getenv("XBT_BOOK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

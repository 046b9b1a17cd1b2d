package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"COTSentinel/internal/pairs"
)

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
	} `yaml:"log"`
	Backtest struct {
		MinConviction    int  `yaml:"min_conviction"`
		ExcludeConflicts bool `yaml:"exclude_conflicts"`
		Workers          int  `yaml:"workers"`
	} `yaml:"backtest"`
	Pairs []string `yaml:"pairs"`
	// InvertedPairs lists pairs whose price feed quotes the reciprocal.
	InvertedPairs []string `yaml:"inverted_pairs"`
	CFTC          struct {
		URLTemplates   []string `yaml:"url_templates"`
		HistoryYears   int      `yaml:"history_years"`
		MaxWeeks       int      `yaml:"max_weeks"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
	} `yaml:"cftc"`
	Prices struct {
		BaseURL     string `yaml:"base_url"`
		APIKey      string `yaml:"api_key"`
		HistoryDays int    `yaml:"history_days"`
	} `yaml:"prices"`
	FeedGuard struct {
		RequestsPerSecond     float64 `yaml:"requests_per_second"`
		Burst                 int     `yaml:"burst"`
		BreakerFailures       uint32  `yaml:"breaker_failures"`
		BreakerTimeoutSeconds int     `yaml:"breaker_timeout_seconds"`
	} `yaml:"feed_guard"`
	Schedule struct {
		WeeklyCron string `yaml:"weekly_cron"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Proxy string `yaml:"proxy"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Backtest.ExcludeConflicts = true
	setDefaults(cfg)
	return cfg
}

// Load reads config from a YAML file, then applies .env and environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &cfg.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &cfg.Telegram.ChatID,
		"PRICES_BASE_URL":    &cfg.Prices.BaseURL,
		"PRICES_API_KEY":     &cfg.Prices.APIKey,
		"HTTPS_PROXY":        &cfg.Proxy,
		"CRON_WEEKLY":        &cfg.Schedule.WeeklyCron,
		"SQLITE_PATH":        &cfg.Database.SQLitePath,
		"LOG_LEVEL":          &cfg.Log.Level,
		"LOG_FORMAT":         &cfg.Log.Format,
		"HTTP_ADDR":          &cfg.HTTP.Addr,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MIN_CONVICTION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MIN_CONVICTION: %w", err)
		}
		cfg.Backtest.MinConviction = n
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Backtest.Workers == 0 {
		cfg.Backtest.Workers = 4
	}
	if len(cfg.Pairs) == 0 {
		for _, p := range pairs.Default().Pairs() {
			cfg.Pairs = append(cfg.Pairs, p.Name)
		}
	}
	if len(cfg.CFTC.URLTemplates) == 0 {
		cfg.CFTC.URLTemplates = []string{
			"https://www.cftc.gov/files/dea/history/fut_fin_xls_{year}.zip",
			"https://www.cftc.gov/files/dea/history/fin_fut_xls_{year}.zip",
		}
	}
	if cfg.CFTC.HistoryYears == 0 {
		cfg.CFTC.HistoryYears = 2
	}
	if cfg.CFTC.MaxWeeks == 0 {
		cfg.CFTC.MaxWeeks = 104
	}
	if cfg.CFTC.TimeoutSeconds == 0 {
		cfg.CFTC.TimeoutSeconds = 60
	}
	if cfg.Prices.HistoryDays == 0 {
		cfg.Prices.HistoryDays = 800
	}
	if cfg.FeedGuard.RequestsPerSecond == 0 {
		cfg.FeedGuard.RequestsPerSecond = 2
	}
	if cfg.FeedGuard.Burst == 0 {
		cfg.FeedGuard.Burst = 2
	}
	if cfg.FeedGuard.BreakerFailures == 0 {
		cfg.FeedGuard.BreakerFailures = 3
	}
	if cfg.FeedGuard.BreakerTimeoutSeconds == 0 {
		cfg.FeedGuard.BreakerTimeoutSeconds = 60
	}
	if cfg.Schedule.WeeklyCron == "" {
		// Friday evening, after the COT release
		cfg.Schedule.WeeklyCron = "0 0 22 * * 5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/cot_sentinel.db"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}

// Validate checks value ranges and that every configured pair is known.
func (c *Config) Validate() error {
	if c.Backtest.MinConviction < 0 || c.Backtest.MinConviction > 9 {
		return fmt.Errorf("backtest.min_conviction must be within 0..9, got %d", c.Backtest.MinConviction)
	}
	if c.Backtest.Workers <= 0 {
		return fmt.Errorf("backtest.workers must be positive")
	}
	if c.CFTC.HistoryYears <= 0 || c.CFTC.MaxWeeks <= 0 {
		return fmt.Errorf("cftc.history_years and cftc.max_weeks must be positive")
	}
	if c.Prices.HistoryDays <= 0 {
		return fmt.Errorf("prices.history_days must be positive")
	}
	if _, err := c.PairTable(); err != nil {
		return err
	}
	return nil
}

// ValidateTelegram checks the fields required to deliver notifications.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// PairTable returns the built-in pair table narrowed to the configured pairs.
func (c *Config) PairTable() (*pairs.Table, error) {
	return pairs.Default().Select(c.Pairs, c.InvertedPairs)
}

func (c *Config) CFTCTimeout() time.Duration {
	return time.Duration(c.CFTC.TimeoutSeconds) * time.Second
}

func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.FeedGuard.BreakerTimeoutSeconds) * time.Second
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Torn     TornConfig     `mapstructure:"torn"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
	Detector DetectorConfig `mapstructure:"detector"`
	Trade    TradeConfig    `mapstructure:"trade"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// TornConfig holds Torn API access configuration.
type TornConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	StockURL       string        `mapstructure:"stock_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// AccountConfig identifies one watched account and its API key.
type AccountConfig struct {
	ID     string `mapstructure:"id"`
	APIKey string `mapstructure:"api_key"`
}

// WatcherConfig holds the polling loop configuration.
type WatcherConfig struct {
	PollInterval time.Duration   `mapstructure:"poll_interval"`
	Accounts     []AccountConfig `mapstructure:"accounts"`
}

// DetectorConfig holds activity detection thresholds and cooldowns.
type DetectorConfig struct {
	EnergyThreshold int           `mapstructure:"energy_threshold"`
	NerveThreshold  int           `mapstructure:"nerve_threshold"`
	CashThreshold   int64         `mapstructure:"cash_threshold"`
	ShortCooldown   time.Duration `mapstructure:"short_cooldown"`
	LongCooldown    time.Duration `mapstructure:"long_cooldown"`
	MaxEvents       int           `mapstructure:"max_events"`
	EventRetention  time.Duration `mapstructure:"event_retention"`
}

// TradeConfig holds buy/sell inference and ledger configuration.
type TradeConfig struct {
	MinBuyThreshold int64         `mapstructure:"min_buy_threshold"`
	RatioTolerance  float64       `mapstructure:"ratio_tolerance"`
	AbsoluteGuard   int64         `mapstructure:"absolute_guard"`
	TypicalCapacity int           `mapstructure:"typical_capacity"`
	DedupWindow     time.Duration `mapstructure:"dedup_window"`
	SellRatioMin    float64       `mapstructure:"sell_ratio_min"`
	SellRatioMax    float64       `mapstructure:"sell_ratio_max"`
	TaxRate         float64       `mapstructure:"tax_rate"`
}

// AlertsConfig holds market alert engine configuration.
type AlertsConfig struct {
	ApproachWindow time.Duration `mapstructure:"approach_window"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("TORNWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("torn.api_url", "https://api.torn.com")
	v.SetDefault("torn.stock_url", "https://yata.yt/api/v1/travel/export/")
	v.SetDefault("torn.timeout", "30s")
	v.SetDefault("torn.max_retries", 3)
	v.SetDefault("torn.retry_delay_base", "1s")

	v.SetDefault("watcher.poll_interval", "30s")

	v.SetDefault("detector.energy_threshold", 5)
	v.SetDefault("detector.nerve_threshold", 2)
	v.SetDefault("detector.cash_threshold", 10_000)
	v.SetDefault("detector.short_cooldown", "30s")
	v.SetDefault("detector.long_cooldown", "5m")
	v.SetDefault("detector.max_events", 500)
	v.SetDefault("detector.event_retention", "72h")

	v.SetDefault("trade.min_buy_threshold", 50_000)
	v.SetDefault("trade.ratio_tolerance", 0.01)
	v.SetDefault("trade.absolute_guard", 500)
	v.SetDefault("trade.typical_capacity", 25)
	v.SetDefault("trade.dedup_window", "10m")
	v.SetDefault("trade.sell_ratio_min", 0.90)
	v.SetDefault("trade.sell_ratio_max", 1.05)
	v.SetDefault("trade.tax_rate", 0.05)

	v.SetDefault("alerts.approach_window", "180s")
	v.SetDefault("alerts.cooldown", "15m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("storage.db_path", "./data/tornwatch.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Torn.APIURL == "" {
		return fmt.Errorf("torn.api_url is required")
	}
	if c.Torn.StockURL == "" {
		return fmt.Errorf("torn.stock_url is required")
	}
	if c.Torn.Timeout < time.Second {
		return fmt.Errorf("torn.timeout must be at least 1 second")
	}
	if c.Torn.MaxRetries < 1 {
		return fmt.Errorf("torn.max_retries must be at least 1")
	}

	if c.Watcher.PollInterval < 10*time.Second {
		return fmt.Errorf("watcher.poll_interval must be at least 10 seconds")
	}
	if len(c.Watcher.Accounts) == 0 {
		return fmt.Errorf("watcher.accounts must contain at least one account")
	}
	for i, acct := range c.Watcher.Accounts {
		if acct.ID == "" {
			return fmt.Errorf("watcher.accounts[%d].id is required", i)
		}
		if acct.APIKey == "" {
			return fmt.Errorf("watcher.accounts[%d].api_key is required", i)
		}
	}

	if c.Detector.EnergyThreshold < 0 {
		return fmt.Errorf("detector.energy_threshold must not be negative")
	}
	if c.Detector.NerveThreshold < 0 {
		return fmt.Errorf("detector.nerve_threshold must not be negative")
	}
	if c.Detector.CashThreshold < 0 {
		return fmt.Errorf("detector.cash_threshold must not be negative")
	}
	if c.Detector.MaxEvents < 1 {
		return fmt.Errorf("detector.max_events must be at least 1")
	}

	if c.Trade.MinBuyThreshold < 0 {
		return fmt.Errorf("trade.min_buy_threshold must not be negative")
	}
	if c.Trade.RatioTolerance <= 0 || c.Trade.RatioTolerance > 0.5 {
		return fmt.Errorf("trade.ratio_tolerance must be in (0, 0.5]")
	}
	if c.Trade.SellRatioMin <= 0 || c.Trade.SellRatioMin >= c.Trade.SellRatioMax {
		return fmt.Errorf("trade.sell_ratio_min must be positive and below trade.sell_ratio_max")
	}
	if c.Trade.TaxRate < 0 || c.Trade.TaxRate >= 1 {
		return fmt.Errorf("trade.tax_rate must be in [0, 1)")
	}
	if c.Trade.TypicalCapacity < 1 {
		return fmt.Errorf("trade.typical_capacity must be at least 1")
	}

	if c.Alerts.ApproachWindow < time.Second {
		return fmt.Errorf("alerts.approach_window must be at least 1 second")
	}
	if c.Alerts.Cooldown < time.Minute {
		return fmt.Errorf("alerts.cooldown must be at least 1 minute")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"bybit-volume-scanner/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Bybit     BybitConfig     `mapstructure:"bybit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ScannerConfig governs one scan cycle. It is replaced wholesale by the
// control surface and takes effect at the next cycle boundary.
type ScannerConfig struct {
	Category        string        `mapstructure:"category"`
	LookbackHours   int           `mapstructure:"lookback_hours"`
	ThresholdPct    float64       `mapstructure:"threshold_pct"`
	Interval        time.Duration `mapstructure:"interval"`
	MinVolume       float64       `mapstructure:"min_volume"`
	RetentionFactor float64       `mapstructure:"retention_factor"`
}

// LookbackWindow converts the configured hours into a duration.
func (c ScannerConfig) LookbackWindow() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// Validate rejects scanner settings that would break cycle semantics. An
// invalid config is never applied; the previously active one stays in effect.
func (c ScannerConfig) Validate() error {
	switch c.Category {
	case "spot", "linear", "inverse":
	default:
		return fmt.Errorf("scanner.category must be one of spot, linear, inverse (got %q)", c.Category)
	}
	if c.LookbackHours <= 0 {
		return fmt.Errorf("scanner.lookback_hours must be greater than zero")
	}
	if c.ThresholdPct <= 0 {
		return fmt.Errorf("scanner.threshold_pct must be greater than zero")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("scanner.interval must be greater than zero")
	}
	if c.MinVolume < 0 {
		return fmt.Errorf("scanner.min_volume cannot be negative")
	}
	if c.RetentionFactor < 1.0 {
		return fmt.Errorf("scanner.retention_factor must be at least 1.0")
	}
	return nil
}

// BybitConfig covers exchange API access.
type BybitConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// StorageConfig locates the volume-history data file.
type StorageConfig struct {
	DataFile string `mapstructure:"data_file"`
}

// DatabaseConfig encapsulates optional PostgreSQL connectivity for the alert
// audit log and history mirror.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// DashboardConfig controls the HTTP dashboard.
type DashboardConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	ListenAddr  string   `mapstructure:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Console  bool           `mapstructure:"console"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the optional Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VOLSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "volscan")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scanner.category", "spot")
	v.SetDefault("scanner.lookback_hours", 24)
	v.SetDefault("scanner.threshold_pct", 30.0)
	v.SetDefault("scanner.interval", "5m")
	v.SetDefault("scanner.min_volume", 0.01)
	v.SetDefault("scanner.retention_factor", 1.2)

	v.SetDefault("bybit.request_timeout", "10s")

	v.SetDefault("storage.data_file", "volume_data.json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x766f6c73))

	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.listen_addr", ":5000")

	v.SetDefault("alerting.console", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if err := c.Scanner.Validate(); err != nil {
		return err
	}
	if c.Storage.DataFile == "" {
		return fmt.Errorf("storage.data_file is required")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Dashboard.Enabled && c.Dashboard.ListenAddr == "" {
		return fmt.Errorf("dashboard.listen_addr is required when the dashboard is enabled")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// Package config provides configuration management for the risklock terminal.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperr "risklock/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	API           APIConfig          `mapstructure:"api"`
	Dashboard     DashboardConfig    `mapstructure:"dashboard"`
	UI            UIConfig           `mapstructure:"ui"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Logging       LoggingConfig      `mapstructure:"logging"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-" json:"-"`
}

// APIConfig holds the remote risk service connection settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Token overrides the token stored by `risklock login`.
	Token string `mapstructure:"token" json:"-"`
}

// DashboardConfig holds polling and dashboard behaviour.
type DashboardConfig struct {
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	TradesPollInterval time.Duration `mapstructure:"trades_poll_interval"`
	// StickyErrors keeps the fetch error page up until an explicit reload,
	// even when a later background poll succeeds.
	StickyErrors bool   `mapstructure:"sticky_errors"`
	ReportDir    string `mapstructure:"report_dir"`
	SessionDB    string `mapstructure:"session_db"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
	Width        int  `mapstructure:"width"`
}

// NotificationConfig holds transition notification configuration.
type NotificationConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Level       string `mapstructure:"level"` // all, risk_only, errors_only
	NATSURL     string `mapstructure:"nats_url"`
	NATSSubject string `mapstructure:"nats_subject"`
	WebhookURL  string `mapstructure:"webhook_url"`
}

// CacheConfig holds the snapshot mirror configuration.
type CacheConfig struct {
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	// AuditFile receives one JSON line per user action. Empty disables it.
	AuditFile string `mapstructure:"audit_file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/risklock"
	}
	return filepath.Join(home, ".config", "risklock")
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("api.token", "")

	v.SetDefault("dashboard.poll_interval", 5*time.Second)
	v.SetDefault("dashboard.trades_poll_interval", 5*time.Second)
	v.SetDefault("dashboard.sticky_errors", false)
	v.SetDefault("dashboard.report_dir", filepath.Join(configDir, "reports"))
	v.SetDefault("dashboard.session_db", filepath.Join(configDir, "session.db"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.width", 96)

	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.level", "risk_only")
	v.SetDefault("notifications.nats_url", "")
	v.SetDefault("notifications.nats_subject", "risklock.dashboard")
	v.SetDefault("notifications.webhook_url", "")

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", filepath.Join(configDir, "logs", "risklock.log"))
	v.SetDefault("logging.audit_file", filepath.Join(configDir, "logs", "audit.log"))
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env in the working directory feeds the RISKLOCK_* overrides below.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, configDir)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("RISKLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
		// Best effort: a read-only home still gets a working default config.
		_ = createTemplateConfig(configDir)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Dir = configDir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", apperr.ErrConfigInvalid, c.API.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: api.base_url scheme must be http or https", apperr.ErrConfigInvalid)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", apperr.ErrConfigInvalid)
	}
	if c.Dashboard.PollInterval <= 0 {
		return fmt.Errorf("%w: dashboard.poll_interval must be positive", apperr.ErrConfigInvalid)
	}
	if c.Dashboard.TradesPollInterval <= 0 {
		return fmt.Errorf("%w: dashboard.trades_poll_interval must be positive", apperr.ErrConfigInvalid)
	}

	switch c.Notifications.Level {
	case "", "all", "risk_only", "errors_only":
	default:
		return fmt.Errorf("%w: notifications.level %q (must be all, risk_only or errors_only)", apperr.ErrConfigInvalid, c.Notifications.Level)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", apperr.ErrConfigInvalid)
	}

	return nil
}

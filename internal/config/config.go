package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Friction  FrictionConfig  `mapstructure:"friction"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Session   SessionConfig   `mapstructure:"session"`
	Prosocial ProsocialConfig `mapstructure:"prosocial"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// StorageConfig defines where shared state and durable data live
type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	SpoolDir string `mapstructure:"spool_dir"` // event drop directory watched by the monitor
}

// FrictionConfig defines the usage thresholds that raise friction levels
type FrictionConfig struct {
	ThresholdMinutes []int `mapstructure:"threshold_minutes"`
}

// BudgetConfig defines the daily limit and the emergency unlock protocol
type BudgetConfig struct {
	DailyLimitMinutes   int    `mapstructure:"daily_limit_minutes"`
	MaxUnlocksPerDay    int    `mapstructure:"max_unlocks_per_day"`
	UnlockWaitSeconds   int    `mapstructure:"unlock_wait_seconds"`
	UnlockWindowMinutes int    `mapstructure:"unlock_window_minutes"`
	UnlockPhrase        string `mapstructure:"unlock_phrase"` // replaces the stored phrase; empty keeps the seeded default
}

// SessionConfig defines focus session defaults
type SessionConfig struct {
	DefaultDurationMinutes int `mapstructure:"default_duration_minutes"`
}

// ProsocialConfig defines the prosocial-exception behavior
type ProsocialConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	TextThresholdMinutes int  `mapstructure:"text_threshold_minutes"`
}

// MonitorConfig defines monitor daemon cadence
type MonitorConfig struct {
	PollInterval      string `mapstructure:"poll_interval"`
	HeartbeatInterval string `mapstructure:"heartbeat_interval"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"` // empty means DataDir/frictiond.log
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FRICTIOND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "frictiond.yaml"
	}
	return filepath.Join(home, ".frictiond", "config.yaml")
}

// StateFilePath is the shared cross-process state store file.
func (c *Config) StateFilePath() string {
	return filepath.Join(c.Storage.DataDir, "state.json")
}

// LedgerPath is the gamification ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Storage.DataDir, "ledger.db")
}

// SecretsDBPath is the encrypted secrets database.
func (c *Config) SecretsDBPath() string {
	return filepath.Join(c.Storage.DataDir, "secrets.db")
}

// KeyFilePath is the encryption key for the secrets database.
func (c *Config) KeyFilePath() string {
	return filepath.Join(c.Storage.DataDir, "secrets.key")
}

// LogPath is the monitor daemon log file.
func (c *Config) LogPath() string {
	if c.Logging.Path != "" {
		return c.Logging.Path
	}
	return filepath.Join(c.Storage.DataDir, "frictiond.log")
}

// PollInterval parses the monitor poll cadence.
func (c *Config) PollInterval() (time.Duration, error) {
	return time.ParseDuration(c.Monitor.PollInterval)
}

// HeartbeatInterval parses the monitor heartbeat cadence.
func (c *Config) HeartbeatInterval() (time.Duration, error) {
	return time.ParseDuration(c.Monitor.HeartbeatInterval)
}

// UnlockWait returns the mandatory reflection delay of the emergency
// unlock protocol.
func (c *Config) UnlockWait() time.Duration {
	return time.Duration(c.Budget.UnlockWaitSeconds) * time.Second
}

// UnlockWindow returns how long a granted emergency unlock lasts.
func (c *Config) UnlockWindow() time.Duration {
	return time.Duration(c.Budget.UnlockWindowMinutes) * time.Minute
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".frictiond")

	// Storage defaults
	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.spool_dir", filepath.Join(dataDir, "spool"))

	// Friction defaults: minutes of guarded-app use per interval
	v.SetDefault("friction.threshold_minutes", []int{30, 60, 90, 120})

	// Budget defaults
	v.SetDefault("budget.daily_limit_minutes", 120)
	v.SetDefault("budget.max_unlocks_per_day", 3)
	v.SetDefault("budget.unlock_wait_seconds", 300)
	v.SetDefault("budget.unlock_window_minutes", 30)

	// Session defaults
	v.SetDefault("session.default_duration_minutes", 25)

	// Prosocial defaults
	v.SetDefault("prosocial.enabled", false)
	v.SetDefault("prosocial.text_threshold_minutes", 15)

	// Monitor defaults
	v.SetDefault("monitor.poll_interval", "1s")
	v.SetDefault("monitor.heartbeat_interval", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}
	if cfg.Storage.SpoolDir == "" {
		cfg.Storage.SpoolDir = filepath.Join(cfg.Storage.DataDir, "spool")
	}

	if len(cfg.Friction.ThresholdMinutes) == 0 {
		return fmt.Errorf("at least one friction threshold is required")
	}
	prev := 0
	for i, m := range cfg.Friction.ThresholdMinutes {
		if m <= prev {
			return fmt.Errorf("friction thresholds must be positive and strictly ascending, got %d at index %d", m, i)
		}
		prev = m
	}

	if cfg.Budget.DailyLimitMinutes <= 0 {
		return fmt.Errorf("invalid daily limit: %d minutes", cfg.Budget.DailyLimitMinutes)
	}
	if cfg.Budget.MaxUnlocksPerDay < 0 {
		return fmt.Errorf("invalid max unlocks per day: %d", cfg.Budget.MaxUnlocksPerDay)
	}
	if cfg.Budget.UnlockWaitSeconds <= 0 {
		return fmt.Errorf("invalid unlock wait: %d seconds", cfg.Budget.UnlockWaitSeconds)
	}
	if cfg.Budget.UnlockWindowMinutes <= 0 {
		return fmt.Errorf("invalid unlock window: %d minutes", cfg.Budget.UnlockWindowMinutes)
	}

	if cfg.Session.DefaultDurationMinutes <= 0 {
		return fmt.Errorf("invalid default session duration: %d minutes", cfg.Session.DefaultDurationMinutes)
	}

	if cfg.Prosocial.Enabled && cfg.Prosocial.TextThresholdMinutes <= 0 {
		return fmt.Errorf("invalid prosocial text threshold: %d minutes", cfg.Prosocial.TextThresholdMinutes)
	}

	if _, err := time.ParseDuration(cfg.Monitor.PollInterval); err != nil {
		return fmt.Errorf("invalid monitor poll_interval: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Monitor.HeartbeatInterval); err != nil {
		return fmt.Errorf("invalid monitor heartbeat_interval: %w", err)
	}

	// Ensure data directories exist
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	return nil
}

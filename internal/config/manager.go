package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperConfigManager is the Viper-backed ConfigManager.
type viperConfigManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load reads the YAML file, layers FOREMAN_* environment variables on
// top, and falls back to defaults for anything unset. A missing file
// is not an error.
func (m *viperConfigManager) Load(ctx context.Context) error {
	m.viper = viper.New()
	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("FOREMAN")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// Get hands back the currently loaded configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate reports every invalid field in one error.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch reloads on file changes and emits the new config. Updates are
// dropped when the channel is full rather than blocking the watcher.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		select {
		case m.watchChan <- *m.config:
		default:
		}
	})

	return m.watchChan
}

// Reload re-reads the file and reapplies environment overrides.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Server defaults
	m.viper.SetDefault("server.host", defaults.Server.Host)
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.tls_enabled", defaults.Server.TLSEnabled)
	m.viper.SetDefault("server.tls_cert_path", defaults.Server.TLSCertPath)
	m.viper.SetDefault("server.tls_key_path", defaults.Server.TLSKeyPath)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)

	// Database defaults
	m.viper.SetDefault("database.path", defaults.Database.Path)

	// Model defaults
	m.viper.SetDefault("model.seed_if_empty", defaults.Model.SeedIfEmpty)
	m.viper.SetDefault("model.retrain_on_start", defaults.Model.RetrainOnStart)

	// Assist defaults
	m.viper.SetDefault("assist.max_query_length", defaults.Assist.MaxQueryLength)
	m.viper.SetDefault("assist.rate_limit_per_minute", defaults.Assist.RateLimitPerMinute)
	m.viper.SetDefault("assist.rate_limit_burst", defaults.Assist.RateLimitBurst)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.audit_log_path", defaults.Logging.AuditLogPath)
	m.viper.SetDefault("logging.app_log_path", defaults.Logging.AppLogPath)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// unmarshalConfig copies the merged viper state into a fresh Config.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	// Server
	cfg.Server.Host = m.viper.GetString("server.host")
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.TLSEnabled = m.viper.GetBool("server.tls_enabled")
	cfg.Server.TLSCertPath = m.viper.GetString("server.tls_cert_path")
	cfg.Server.TLSKeyPath = m.viper.GetString("server.tls_key_path")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")

	// Database
	cfg.Database.Path = m.viper.GetString("database.path")

	// Model
	cfg.Model.SeedIfEmpty = m.viper.GetBool("model.seed_if_empty")
	cfg.Model.RetrainOnStart = m.viper.GetBool("model.retrain_on_start")

	// Assist
	cfg.Assist.MaxQueryLength = m.viper.GetInt("assist.max_query_length")
	cfg.Assist.RateLimitPerMinute = m.viper.GetInt("assist.rate_limit_per_minute")
	cfg.Assist.RateLimitBurst = m.viper.GetInt("assist.rate_limit_burst")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.AuditLogPath = m.viper.GetString("logging.audit_log_path")
	cfg.Logging.AppLogPath = m.viper.GetString("logging.app_log_path")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")

	m.config = cfg
	return nil
}

// applyEnvOverrides handles the shorthand variables that do not follow
// the FOREMAN_SECTION_KEY naming.
func (m *viperConfigManager) applyEnvOverrides() {
	if portEnv := os.Getenv("FOREMAN_PORT"); portEnv != "" {
		if port, err := strconv.Atoi(portEnv); err == nil {
			m.config.Server.Port = port
		}
	}

	if dbPath := os.Getenv("FOREMAN_DB_PATH"); dbPath != "" {
		m.config.Database.Path = dbPath
	}

	if level := os.Getenv("FOREMAN_LOG_LEVEL"); level != "" {
		m.config.Logging.Level = level
	}
}

package config

import "context"

// Package config resolves the runtime settings for foreman-ai.
//
// Values are merged from three places, strongest first: FOREMAN_*
// environment variables, a YAML file (/etc/foreman/config.yaml unless
// the -config flag points elsewhere), and built-in defaults.
// Validation runs over the merged result and collects every problem in
// one pass instead of stopping at the first.
//
// The YAML file mirrors the Config struct:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8081
//	  allowed_origins: ["https://floor.example.com"]
//	database:
//	  path: /var/lib/foreman/foreman-ai.db
//	model:
//	  seed_if_empty: true
//	  retrain_on_start: true
//	assist:
//	  max_query_length: 2000
//	  rate_limit_per_minute: 120
//	  rate_limit_burst: 30
//	logging:
//	  level: info
//	  format: json
//	  audit_log_path: logs/audit.log
//	  app_log_path: logs/app.log
//
// Config carries every runtime setting, grouped by section.
type Config struct {
	// HTTP listener
	Server struct {
		Host        string
		Port        int
		TLSEnabled  bool
		TLSCertPath string
		TLSKeyPath  string
		// AllowedOrigins lists the origins accepted for WebSocket
		// upgrades. Empty means the local dev servers on ports 3000
		// and 5173; ["*"] turns the check off.
		AllowedOrigins []string
	}

	// SQLite persistence
	Database struct {
		Path string
	}

	// Model startup behavior
	Model struct {
		SeedIfEmpty    bool
		RetrainOnStart bool
	}

	// Query intake limits
	Assist struct {
		MaxQueryLength     int
		RateLimitPerMinute int
		RateLimitBurst     int
	}

	// Log routing and rotation
	Logging struct {
		Level        string
		Format       string
		AuditLogPath string
		AppLogPath   string
		MaxSizeMB    int
		MaxBackups   int
		MaxAgeDays   int
		Compress     bool
	}
}

// ConfigManager loads, validates, and serves the runtime configuration.
type ConfigManager interface {
	// Load merges file, environment, and default values.
	Load(ctx context.Context) error

	// Get returns the active configuration.
	Get(ctx context.Context) *Config

	// Validate checks every section and reports all problems at once.
	Validate(ctx context.Context) error

	// Watch emits a fresh Config whenever the file changes on disk.
	Watch(ctx context.Context) <-chan Config

	// Reload re-reads the file on demand.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a manager reading from the given path.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a manager on the standard path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager("/etc/foreman/config.yaml")
}

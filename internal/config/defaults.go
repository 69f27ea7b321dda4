package config

// DefaultConfig returns the configuration the server runs with when
// nothing is overridden.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Listener
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8081
	cfg.Server.TLSEnabled = false
	cfg.Server.TLSCertPath = ""
	cfg.Server.TLSKeyPath = ""

	// Storage
	cfg.Database.Path = "/var/lib/foreman/foreman-ai.db"

	// Model
	cfg.Model.SeedIfEmpty = true
	cfg.Model.RetrainOnStart = true

	// Assist pipeline
	cfg.Assist.MaxQueryLength = 2000
	cfg.Assist.RateLimitPerMinute = 120
	cfg.Assist.RateLimitBurst = 30

	// Logging
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.AppLogPath = "logs/app.log"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true

	return cfg
}

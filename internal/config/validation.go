package config

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError reports one bad field by its config path.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks every section and returns one error per bad field,
// so a broken file reports all its problems in a single run.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, invalid("server.port", "port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if c.Server.TLSEnabled {
		errs = append(errs, c.validateTLSFile("server.tls_cert_path", "tls_cert_path", "certificate", c.Server.TLSCertPath)...)
		errs = append(errs, c.validateTLSFile("server.tls_key_path", "tls_key_path", "key", c.Server.TLSKeyPath)...)
	}

	if c.Database.Path == "" {
		errs = append(errs, invalid("database.path", "database path is required"))
	}

	if c.Assist.MaxQueryLength < 1 {
		errs = append(errs, invalid("assist.max_query_length", "max_query_length must be at least 1, got %d", c.Assist.MaxQueryLength))
	}
	if c.Assist.RateLimitPerMinute < 0 {
		errs = append(errs, invalid("assist.rate_limit_per_minute", "rate_limit_per_minute cannot be negative, got %d", c.Assist.RateLimitPerMinute))
	}
	if c.Assist.RateLimitPerMinute > 0 && c.Assist.RateLimitBurst < 1 {
		errs = append(errs, invalid("assist.rate_limit_burst", "rate_limit_burst must be at least 1 when rate limiting is enabled, got %d", c.Assist.RateLimitBurst))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("logging.level", "invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, invalid("logging.format", "invalid log format '%s', must be one of: json, text", c.Logging.Format))
	}

	if c.Logging.MaxSizeMB < 1 {
		errs = append(errs, invalid("logging.max_size_mb", "max_size_mb must be at least 1, got %d", c.Logging.MaxSizeMB))
	}

	return errs
}

// validateTLSFile checks that a TLS path is set and points at a file.
func (c *Config) validateTLSFile(field, key, kind, path string) []error {
	if path == "" {
		return []error{invalid(field, "%s is required when tls_enabled is true", key)}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return []error{invalid(field, "%s file does not exist: %s", kind, path)}
	}
	return nil
}

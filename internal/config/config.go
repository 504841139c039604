package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cifra/internal/calendar"
	"cifra/internal/keys"
)

type Config struct {
	// HTTP agent
	Port               string `yaml:"port"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	MetricsEnabled     bool   `yaml:"metrics_enabled"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Decryption
	CipherBackend string        `yaml:"cipher_backend"`
	FanoutLimit   int           `yaml:"fanout_limit"`
	KeyCacheTTL   time.Duration `yaml:"key_cache_ttl"`
	KeyFile       string        `yaml:"key_file"`
	// KeyHex is only ever read from the environment.
	KeyHex string `yaml:"-"`

	// Formatting
	Locale   string `yaml:"locale"`
	Timezone string `yaml:"timezone"`

	// Inbox
	SQLiteDBPath   string        `yaml:"sqlite_db_path"`
	InboxRetention time.Duration `yaml:"inbox_retention"`

	// AMQP
	AMQPURL      string `yaml:"amqp_url"`
	AMQPExchange string `yaml:"amqp_exchange"`
	AMQPQueue    string `yaml:"amqp_queue"`

	// Google Sheets export
	GoogleSpreadsheetID      string `yaml:"google_spreadsheet_id"`
	GoogleSheetName          string `yaml:"google_sheet_name"`
	GoogleServiceAccountJSON string `yaml:"-"`
	GoogleServiceAccountFile string `yaml:"google_service_account_file"`

	// Worker
	DrainBatchSize int           `yaml:"drain_batch_size"`
	DrainInterval  time.Duration `yaml:"drain_interval"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 120,
		MetricsEnabled:     true,
		LogLevel:           "info",
		LogFormat:          "json",
		CipherBackend:      string(keys.AESGCM),
		FanoutLimit:        16,
		KeyCacheTTL:        12 * time.Hour,
		Locale:             calendar.DefaultLocale.String(),
		Timezone:           "UTC",
		SQLiteDBPath:       "./data/cifra.db",
		InboxRetention:     30 * 24 * time.Hour,
		AMQPURL:            "",
		AMQPExchange:       "cifra",
		AMQPQueue:          "raw_payloads",
		GoogleSheetName:    "Transactions",
		DrainBatchSize:     10,
		DrainInterval:      30 * time.Second,
	}
}

// Load builds the configuration from the defaults, the optional YAML file
// named by CONFIG_FILE and the environment, in increasing precedence.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	c.CipherBackend = getEnv("CIPHER_BACKEND", c.CipherBackend)
	c.FanoutLimit = getEnvInt("FANOUT_LIMIT", c.FanoutLimit)
	c.KeyCacheTTL = getEnvDuration("KEY_CACHE_TTL", c.KeyCacheTTL)
	c.KeyFile = getEnv("KEY_FILE", c.KeyFile)
	c.KeyHex = getEnv("KEY_HEX", c.KeyHex)

	c.Locale = getEnv("LOCALE", c.Locale)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleSheetName = getEnv("GOOGLE_SHEET_NAME", c.GoogleSheetName)
	c.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", c.GoogleServiceAccountJSON)
	c.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", c.GoogleServiceAccountFile)

	c.DrainBatchSize = getEnvInt("DRAIN_BATCH_SIZE", c.DrainBatchSize)
	c.DrainInterval = getEnvDuration("DRAIN_INTERVAL", c.DrainInterval)
	c.InboxRetention = getEnvDuration("INBOX_RETENTION", c.InboxRetention)
}

// SheetsEnabled reports whether decrypted transactions are exported.
func (c *Config) SheetsEnabled() bool { return c.GoogleSpreadsheetID != "" }

// AMQPEnabled reports whether raw payloads arrive over AMQP.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// KeyMaterial returns the hex key from KEY_HEX, or else from KEY_FILE. An
// empty string means no key was configured.
func (c *Config) KeyMaterial() (string, error) {
	if c.KeyHex != "" {
		return strings.TrimSpace(c.KeyHex), nil
	}
	if c.KeyFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.KeyFile)
	if err != nil {
		return "", fmt.Errorf("read key file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'json' or 'text'", c.LogFormat))
	}

	if _, err := keys.ParseBackend(c.CipherBackend); err != nil {
		errs = append(errs, fmt.Sprintf("invalid cipher backend '%s': must be '%s' or '%s'", c.CipherBackend, keys.AESGCM, keys.ChaCha20Poly1305))
	}
	if c.FanoutLimit < 0 {
		errs = append(errs, fmt.Sprintf("invalid fanout limit %d: must not be negative", c.FanoutLimit))
	}
	if c.KeyCacheTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid key cache TTL %v: must be at least 1 minute", c.KeyCacheTTL))
	}
	if c.KeyFile != "" {
		if _, err := os.Stat(c.KeyFile); errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Sprintf("key file does not exist: %s", c.KeyFile))
		}
	}

	if _, err := calendar.ParseLocale(c.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("invalid locale '%s': %v", c.Locale, err))
	}
	if _, err := calendar.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else if c.SQLiteDBPath != ":memory:" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errs = append(errs, "Google Sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" {
			errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.DrainBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid drain batch size %d: must be at least 1", c.DrainBatchSize))
	} else if c.DrainBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid drain batch size %d: must be at most 1000", c.DrainBatchSize))
	}
	if c.DrainInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid drain interval %v: must be at least 1 second", c.DrainInterval))
	} else if c.DrainInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid drain interval %v: must be at most 24 hours", c.DrainInterval))
	}
	if c.InboxRetention < 0 {
		errs = append(errs, fmt.Sprintf("invalid inbox retention %v: must not be negative", c.InboxRetention))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	validBackends   = []string{"xlsx", "memory", "sqlite", "sheets"}
	validMirrors    = []string{"xlsx", "sqlite", "sheets"}
	validLogFormats = []string{"text", "json", "pretty"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend      string
	TransactionsFile string
	SQLiteDBPath     string
	CategoriesFile   string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Mirror worker
	MirrorBackend string
	MirrorFile    string
	SyncInterval  time.Duration

	// AMQP, empty URL disables events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Advice service
	AdviceBaseURL   string
	AdviceAPIKey    string
	AdviceModel     string
	AdviceMaxTokens int
	AdviceTimeout   time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:      strings.ToLower(getEnv("DATA_BACKEND", "xlsx")),
		TransactionsFile: getEnv("TRANSACTIONS_FILE", "transactions.xlsx"),
		SQLiteDBPath:     getEnv("SQLITE_DB_PATH", "./data/pfm.db"),
		CategoriesFile:   getEnv("CATEGORIES_FILE", ""),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		MirrorBackend: strings.ToLower(getEnv("MIRROR_BACKEND", "")),
		MirrorFile:    getEnv("MIRROR_FILE", "./data/mirror.xlsx"),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "pfm"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_transactions"),

		AdviceBaseURL:   getEnv("ADVICE_BASE_URL", "https://api.webraft.in/v1"),
		AdviceAPIKey:    getEnv("ADVICE_API_KEY", ""),
		AdviceModel:     getEnv("ADVICE_MODEL", "gpt-4"),
		AdviceMaxTokens: getEnvInt("ADVICE_MAX_TOKENS", 200),
		AdviceTimeout:   getEnvDuration("ADVICE_TIMEOUT", 30*time.Second),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// AMQPEnabled reports whether transaction events should be published.
func (c *Config) AMQPEnabled() bool {
	return strings.TrimSpace(c.AMQPURL) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	errors = append(errors, c.validateBackend(c.DataBackend, c.TransactionsFile)...)

	if c.MirrorBackend != "" {
		if !slices.Contains(validMirrors, c.MirrorBackend) {
			errors = append(errors, fmt.Sprintf("invalid mirror backend '%s': must be one of %v", c.MirrorBackend, validMirrors))
		} else if c.MirrorBackend == c.DataBackend && c.MirrorBackend != "xlsx" {
			errors = append(errors, fmt.Sprintf("mirror backend '%s' must differ from the data backend", c.MirrorBackend))
		} else if c.MirrorBackend == "xlsx" && c.DataBackend == "xlsx" && samePath(c.MirrorFile, c.TransactionsFile) {
			errors = append(errors, "MIRROR_FILE must differ from TRANSACTIONS_FILE")
		}
		if c.MirrorBackend != c.DataBackend {
			errors = append(errors, c.validateBackend(c.MirrorBackend, c.MirrorFile)...)
		}
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if parsedURL, err := url.Parse(c.AdviceBaseURL); err != nil || parsedURL.Host == "" ||
		(parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		errors = append(errors, fmt.Sprintf("invalid advice base URL '%s': must be an absolute http(s) URL", c.AdviceBaseURL))
	}
	if c.AdviceMaxTokens < 1 {
		errors = append(errors, fmt.Sprintf("invalid advice max tokens %d: must be at least 1", c.AdviceMaxTokens))
	}
	if c.AdviceTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid advice timeout %v: must be positive", c.AdviceTimeout))
	}

	if c.CategoriesFile != "" {
		if _, err := os.Stat(c.CategoriesFile); err != nil {
			errors = append(errors, fmt.Sprintf("categories file not readable: %s", c.CategoriesFile))
		}
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// validateBackend checks the settings a storage backend needs. file is the
// workbook path used when backend is xlsx.
func (c *Config) validateBackend(backend, file string) []string {
	var errors []string
	switch backend {
	case "xlsx":
		if strings.TrimSpace(file) == "" {
			errors = append(errors, "spreadsheet path cannot be empty when using xlsx backend")
		} else if ext := strings.ToLower(filepath.Ext(file)); ext != ".xlsx" {
			errors = append(errors, fmt.Sprintf("spreadsheet path '%s' must end in .xlsx", file))
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasFile && c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	return errors
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

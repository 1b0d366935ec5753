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

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var (
	validBackends   = []string{BackendMemory, BackendSQLite, BackendPostgres}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json", "pretty"}
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Storage
	StoreBackend   string
	SQLiteDBPath   string
	DatabaseURL    string
	MemoryDataPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// AI
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITemperature float64
	LLMTimeout        time.Duration

	// AI response cache
	RedisURL    string
	AICacheTTL  time.Duration
	AICacheSize int

	// Ingestion
	IngestSource   string
	AllowZeroTotal bool

	// Export
	ExportDefaultLimit int

	// Seeding
	SeedChunkSize  int
	SeedChunkDelay time.Duration

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string
	SheetsMirrorEvery   time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		StoreBackend:   getEnv("STORE_BACKEND", BackendMemory),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/receipts.db"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MemoryDataPath: getEnv("MEMORY_DATA_PATH", "data"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "receipts"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ingest_receipts"),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", ""),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.2),
		LLMTimeout:        getEnvDuration("LLM_TIMEOUT", 45*time.Second),

		RedisURL:    getEnv("REDIS_URL", ""),
		AICacheTTL:  getEnvDuration("AI_CACHE_TTL", time.Hour),
		AICacheSize: getEnvInt("AI_CACHE_SIZE", 500),

		IngestSource:   getEnv("INGEST_SOURCE", ""),
		AllowZeroTotal: getEnvBool("ALLOW_ZERO_TOTAL", false),

		ExportDefaultLimit: getEnvInt("EXPORT_DEFAULT_LIMIT", 1000),

		SeedChunkSize:  getEnvInt("SEED_CHUNK_SIZE", 25),
		SeedChunkDelay: getEnvDuration("SEED_CHUNK_DELAY", 200*time.Millisecond),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Receipts"),
		SheetsMirrorEvery:   getEnvDuration("SHEETS_MIRROR_INTERVAL", 0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// HasAI reports whether a model credential is configured.
func (c *Config) HasAI() bool { return strings.TrimSpace(c.OpenAIAPIKey) != "" }

// HasSheets reports whether the Google Sheets mirror is configured.
func (c *Config) HasSheets() bool { return strings.TrimSpace(c.GoogleSpreadsheetID) != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
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

	if c.OpenAIBaseURL != "" {
		if u, err := url.Parse(c.OpenAIBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid OPENAI_BASE_URL '%s': must be an http(s) URL", c.OpenAIBaseURL))
		}
	}
	if c.OpenAITemperature < 0 || c.OpenAITemperature > 2 {
		errors = append(errors, fmt.Sprintf("invalid OpenAI temperature %v: must be between 0 and 2", c.OpenAITemperature))
	}
	if c.LLMTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be at least 1 second", c.LLMTimeout))
	} else if c.LLMTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid LLM timeout %v: must be at most 5 minutes", c.LLMTimeout))
	}

	if c.AICacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid AI cache TTL %v: must not be negative", c.AICacheTTL))
	}
	if c.AICacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid AI cache size %d: must be at least 1", c.AICacheSize))
	}

	if c.ExportDefaultLimit < 1 || c.ExportDefaultLimit > 100000 {
		errors = append(errors, fmt.Sprintf("invalid export limit %d: must be between 1 and 100000", c.ExportDefaultLimit))
	}

	if c.SeedChunkSize < 1 || c.SeedChunkSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid seed chunk size %d: must be between 1 and 1000", c.SeedChunkSize))
	}
	if c.SeedChunkDelay < 0 {
		errors = append(errors, fmt.Sprintf("invalid seed chunk delay %v: must not be negative", c.SeedChunkDelay))
	}

	if c.HasSheets() && strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}
	if c.SheetsMirrorEvery != 0 && c.SheetsMirrorEvery < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sheets mirror interval %v: must be at least 1 minute", c.SheetsMirrorEvery))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

package common

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Registry RegistryConfig
	Queue    QueueConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string `validate:"oneof=postgres sqlite"`
	DSN              string `validate:"required"`
	MaxConns         int32  `validate:"gte=1"`
	MinConns         int32  `validate:"gte=0,ltefield=MaxConns"`
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration `validate:"gt=0"`
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string `validate:"required,numeric"`
	GRPCAddr    string `validate:"required"`
	CORSOrigins []string
}

// StorageConfig holds upload storage configuration
type StorageConfig struct {
	UploadDir   string `validate:"required"`
	MaxFileSize int64  `validate:"gt=0"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	TessdataDir   string
	Lang          string        `validate:"required"`
	DPI           int           `validate:"gte=72,lte=1200"`
	Timeout       time.Duration `validate:"gt=0"`
	TSVConfidence bool
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model           string `validate:"required"`
	APIKey          string
	BaseURL         string        `validate:"omitempty,url"`
	Temperature     float32       `validate:"gte=0,lte=2"`
	Timeout         time.Duration `validate:"gt=0"`
	FallbackEnabled bool
}

// RegistryConfig points at the university registry service.
type RegistryConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// QueueConfig sizes the background worker pool.
type QueueConfig struct {
	Workers int `validate:"gte=1"`
	Size    int `validate:"gte=1"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

// LoadConfig loads .env files (if present) and then configuration from environment variables.
func LoadConfig(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, NewAppError("CONFIG_ERROR", "failed to load .env", err)
	}
	return FromEnv(), nil
}

// FromEnv reads configuration from the process environment only.
func FromEnv() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Port:        strings.TrimPrefix(getEnv("PORT", "5000"), ":"),
			GRPCAddr:    getEnv("GRPC_ADDR", ":8081"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Storage: StorageConfig{
			UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10<<20),
		},
		OCR: OCRConfig{
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			Lang:          getEnv("OCR_LANG", "eng"),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
			TSVConfidence: getEnvAsBool("OCR_TSV_CONFIDENCE", false),
		},
		LLM: LLMConfig{
			Model:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			BaseURL:         getEnv("OPENAI_BASE_URL", ""),
			Temperature:     getEnvAsFloat32("OPENAI_TEMPERATURE", 0.1),
			Timeout:         getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			FallbackEnabled: getEnvAsBool("LLM_FALLBACK_ENABLED", false),
		},
		Registry: RegistryConfig{
			BaseURL: strings.TrimRight(getEnv("UNIVERSITY_PORTAL_URL", "http://localhost:3000"), "/"),
			Timeout: getEnvAsDuration("REGISTRY_TIMEOUT", 10*time.Second),
		},
		Queue: QueueConfig{
			Workers: getEnvAsInt("QUEUE_WORKERS", 4),
			Size:    getEnvAsInt("QUEUE_SIZE", 256),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", errors.Join(ErrInvalidInput, err))
	}
	return nil
}

// AIConfigured reports whether an API key is present.
func (c LLMConfig) AIConfigured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

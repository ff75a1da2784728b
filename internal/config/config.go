package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

type Config struct {
	Addr               string
	DatabaseURL        string
	CORSAllowedOrigins []string
	Env                string
	APIMaxBodyBytes    int64
	ImportMaxFileBytes int64
	ImportMaxRows      int
	ImportBatchSize    int
	ImportLineBatch    int
	ImportPageSize     int
	ImportCurrency     string
	ImportRateLimit    int
	ReadHeaderTimeout  time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	RateLimitMaxIPs    int
}

// Load reads the environment (and .env when present). DATABASE_URL is
// checked by RequireDatabase so the in-memory CLI can run without one.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:        getEnv("API_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		CORSAllowedOrigins: getEnvCSV("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		}),
		Env:                getEnv("APP_ENV", "dev"),
		APIMaxBodyBytes:    int64(getEnvInt("API_MAX_BODY_MB", 2)) * 1024 * 1024,
		ImportMaxFileBytes: int64(getEnvInt("IMPORT_MAX_FILE_MB", 25)) * 1024 * 1024,
		ImportMaxRows:      getEnvInt("IMPORT_MAX_ROWS", 20000),
		ImportBatchSize:    getEnvInt("IMPORT_BATCH_SIZE", 50),
		ImportLineBatch:    getEnvInt("IMPORT_LINE_BATCH_SIZE", 200),
		ImportPageSize:     getEnvInt("IMPORT_PAGE_SIZE", 1000),
		ImportCurrency:     getEnv("IMPORT_CURRENCY", "GH₵"),
		ImportRateLimit:    getEnvInt("IMPORT_RATE_LIMIT_PER_MIN", 10),
		ReadHeaderTimeout:  time.Duration(getEnvInt("API_READ_HEADER_TIMEOUT_SEC", 5)) * time.Second,
		ReadTimeout:        time.Duration(getEnvInt("API_READ_TIMEOUT_SEC", 60)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("API_WRITE_TIMEOUT_SEC", 30)) * time.Second,
		IdleTimeout:        time.Duration(getEnvInt("API_IDLE_TIMEOUT_SEC", 60)) * time.Second,
		RateLimitMaxIPs:    getEnvInt("RATE_LIMIT_MAX_IPS", 10000),
	}

	if cfg.ImportBatchSize < 1 || cfg.ImportBatchSize > 1000 {
		return Config{}, fmt.Errorf("IMPORT_BATCH_SIZE must be between 1 and 1000, got %d", cfg.ImportBatchSize)
	}
	if cfg.ImportLineBatch < 1 || cfg.ImportLineBatch > 5000 {
		return Config{}, fmt.Errorf("IMPORT_LINE_BATCH_SIZE must be between 1 and 5000, got %d", cfg.ImportLineBatch)
	}
	if cfg.ImportPageSize < 1 {
		return Config{}, fmt.Errorf("IMPORT_PAGE_SIZE must be positive, got %d", cfg.ImportPageSize)
	}

	return cfg, nil
}

func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvCSV(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

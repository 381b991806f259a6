package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	APIPrefix        string
	UploadDir        string
	ProcessedDir     string
	MaxUploadBytes   int64
	DefaultConverter string
	LayoutBinary     string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8000"),
		APIPrefix:        getEnv("API_PREFIX", "/api/v1"),
		UploadDir:        getEnv("UPLOAD_DIR", "./data/uploads"),
		ProcessedDir:     getEnv("PROCESSED_DIR", "./data/processed"),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		DefaultConverter: getEnv("CONVERTER", "fastocr"),
		LayoutBinary:     os.Getenv("LAYOUT_BINARY"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if !strings.HasPrefix(cfg.APIPrefix, "/") {
		return nil, fmt.Errorf("API_PREFIX must start with /, got %q", cfg.APIPrefix)
	}
	cfg.APIPrefix = strings.TrimRight(cfg.APIPrefix, "/")

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}

	for _, dir := range []*string{&cfg.UploadDir, &cfg.ProcessedDir} {
		if abs, err := filepath.Abs(*dir); err == nil {
			*dir = abs
		}
		if err := os.MkdirAll(*dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure directory %s: %w", *dir, err)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

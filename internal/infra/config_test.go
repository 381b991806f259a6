package infra

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func setConfigDirs(t *testing.T) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("UPLOAD_DIR", filepath.Join(base, "uploads"))
	t.Setenv("PROCESSED_DIR", filepath.Join(base, "processed"))
}

func TestLoadConfigDefaults(t *testing.T) {
	setConfigDirs(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != "8000" {
		t.Fatalf("Port = %q, want 8000", cfg.Port)
	}
	if cfg.APIPrefix != "/api/v1" {
		t.Fatalf("APIPrefix = %q, want /api/v1", cfg.APIPrefix)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Fatalf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 10<<20)
	}
	if cfg.DefaultConverter != "fastocr" {
		t.Fatalf("DefaultConverter = %q, want fastocr", cfg.DefaultConverter)
	}
	if cfg.HTTPWriteTimeout != 120*time.Second {
		t.Fatalf("HTTPWriteTimeout = %v", cfg.HTTPWriteTimeout)
	}
	want := []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if !filepath.IsAbs(cfg.UploadDir) || !filepath.IsAbs(cfg.ProcessedDir) {
		t.Fatalf("directories not absolute: %q %q", cfg.UploadDir, cfg.ProcessedDir)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setConfigDirs(t)
	t.Setenv("PORT", "9100")
	t.Setenv("API_PREFIX", "/api/v2/")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("CONVERTER", "layout")
	t.Setenv("LAYOUT_BINARY", "/opt/marker/bin/marker_single")
	t.Setenv("CORS_ORIGINS", " http://a.example , http://b.example ,")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Port != "9100" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	// Trailing slash is trimmed so route joins never double up.
	if cfg.APIPrefix != "/api/v2" {
		t.Fatalf("APIPrefix = %q, want /api/v2", cfg.APIPrefix)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("MaxUploadBytes = %d", cfg.MaxUploadBytes)
	}
	if cfg.DefaultConverter != "layout" {
		t.Fatalf("DefaultConverter = %q", cfg.DefaultConverter)
	}
	if cfg.LayoutBinary != "/opt/marker/bin/marker_single" {
		t.Fatalf("LayoutBinary = %q", cfg.LayoutBinary)
	}
	want := []string{"http://a.example", "http://b.example"}
	if !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.RateLimitPerMin != 5 {
		t.Fatalf("RateLimitPerMin = %d", cfg.RateLimitPerMin)
	}
}

func TestLoadConfigRejectsBadPrefix(t *testing.T) {
	setConfigDirs(t)
	t.Setenv("API_PREFIX", "api/v1")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for prefix without leading slash")
	}
}

func TestLoadConfigRejectsNonPositiveUploadLimit(t *testing.T) {
	setConfigDirs(t)
	t.Setenv("MAX_UPLOAD_BYTES", "-1")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for negative upload limit")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CONFIG_TEST_STR", "")
	if got := getEnv("CONFIG_TEST_STR", "fallback"); got != "fallback" {
		t.Fatalf("empty value must fall back, got %q", got)
	}

	t.Setenv("CONFIG_TEST_INT", "not a number")
	if got := getEnvInt("CONFIG_TEST_INT", 7); got != 7 {
		t.Fatalf("unparsable int must fall back, got %d", got)
	}

	t.Setenv("CONFIG_TEST_INT64", "2147483648")
	if got := getEnvInt64("CONFIG_TEST_INT64", 0); got != 2147483648 {
		t.Fatalf("getEnvInt64 = %d", got)
	}
}

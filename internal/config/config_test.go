package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := load(func(string) string { return "" })
	if cfg.Addr != ":8787" || cfg.DatabaseDriver != "sqlite" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AccessTTL != 15*time.Minute || cfg.LLMTimeout != time.Minute {
		t.Fatalf("unexpected durations: access=%s llm=%s", cfg.AccessTTL, cfg.LLMTimeout)
	}
	if cfg.RedisURL != "" || cfg.MeiliURL != "" || cfg.S3Endpoint != "" {
		t.Fatal("optional backends should default to disabled")
	}
}

func TestLoadParsesValues(t *testing.T) {
	env := map[string]string{
		"S3_USE_SSL":          "true",
		"LLM_RATE_PER_MINUTE": "5",
		"LLM_TIMEOUT_SECONDS": "not-a-number",
	}
	cfg := load(func(key string) string { return env[key] })
	if !cfg.S3UseSSL || cfg.LLMRatePerMinute != 5 {
		t.Fatalf("unexpected parsed values: %+v", cfg)
	}
	if cfg.LLMTimeout != time.Minute {
		t.Fatalf("invalid int should fall back, got %s", cfg.LLMTimeout)
	}
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journey.yaml")
	content := "api_addr: \":9000\"\nLLM_RATE_PER_MINUTE: 7\nS3_USE_SSL: true\nLOG_LEVEL: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JOURNEY_CONFIG_FILE", path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9000" || cfg.LLMRatePerMinute != 7 || !cfg.S3UseSSL {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("env should override file, got %q", cfg.LogLevel)
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("a: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JOURNEY_CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

// Package config loads settings from the environment, optionally layered over
// a YAML file named by JOURNEY_CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string
	DatabaseDriver string
	DatabaseURL    string
	JWTSecret      string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	CORSOrigin     string
	MeiliURL       string
	MeiliMasterKey string
	// Redis backs sessions, the lineage lock and the LLM quota. Empty means in-process.
	RedisURL string
	// S3-compatible screenshot storage. Empty endpoint disables uploads.
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Bucket     string
	S3Region     string
	S3UseSSL     bool
	UploadURLTTL time.Duration
	// LLM
	LLMBaseURL       string
	LLMAPIKey        string
	LLMModel         string
	LLMTimeout       time.Duration
	LLMRatePerMinute int
	NotifyWebhookURL string
	LogLevel         string
	LogFormat        string
	ChromePath       string
}

// Load reads JOURNEY_CONFIG_FILE (if set) and the environment. Environment
// variables win over file values.
func Load() (Config, error) {
	file := map[string]string{}
	if path := os.Getenv("JOURNEY_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		file, err = parseFile(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	return load(func(key string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		return file[key]
	}), nil
}

// parseFile accepts a flat mapping of the same keys as the environment.
func parseFile(raw []byte) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	values := make(map[string]string, len(doc))
	for key, value := range doc {
		if value == nil {
			continue
		}
		values[strings.ToUpper(key)] = fmt.Sprint(value)
	}
	return values, nil
}

func load(lookup func(string) string) Config {
	getenv := func(key, fallback string) string {
		if value := lookup(key); value != "" {
			return value
		}
		return fallback
	}
	getenvInt := func(key string, fallback int) int {
		parsed, err := strconv.Atoi(lookup(key))
		if err != nil {
			return fallback
		}
		return parsed
	}
	getenvBool := func(key string, fallback bool) bool {
		parsed, err := strconv.ParseBool(lookup(key))
		if err != nil {
			return fallback
		}
		return parsed
	}
	seconds := func(key string, fallback int) time.Duration {
		return time.Duration(getenvInt(key, fallback)) * time.Second
	}

	return Config{
		Addr:             getenv("API_ADDR", ":8787"),
		DatabaseDriver:   getenv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:      getenv("DATABASE_URL", "file:journey.db"),
		JWTSecret:        getenv("JOURNEY_JWT_SECRET", "journey-dev-secret"),
		AccessTTL:        seconds("JOURNEY_ACCESS_TTL_SECONDS", 900),
		RefreshTTL:       seconds("JOURNEY_REFRESH_TTL_SECONDS", 2592000),
		CORSOrigin:       getenv("JOURNEY_CORS_ORIGIN", "*"),
		MeiliURL:         getenv("MEILI_URL", ""),
		MeiliMasterKey:   getenv("MEILI_MASTER_KEY", ""),
		RedisURL:         getenv("REDIS_URL", ""),
		S3Endpoint:       getenv("S3_ENDPOINT", ""),
		S3AccessKey:      getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:      getenv("S3_SECRET_KEY", ""),
		S3Bucket:         getenv("S3_BUCKET", "journey-screenshots"),
		S3Region:         getenv("S3_REGION", "us-east-1"),
		S3UseSSL:         getenvBool("S3_USE_SSL", false),
		UploadURLTTL:     seconds("JOURNEY_UPLOAD_URL_TTL_SECONDS", 900),
		LLMBaseURL:       getenv("LLM_BASE_URL", ""),
		LLMAPIKey:        getenv("LLM_API_KEY", ""),
		LLMModel:         getenv("LLM_MODEL", ""),
		LLMTimeout:       seconds("LLM_TIMEOUT_SECONDS", 60),
		LLMRatePerMinute: getenvInt("LLM_RATE_PER_MINUTE", 20),
		NotifyWebhookURL: getenv("NOTIFY_WEBHOOK_URL", ""),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        getenv("LOG_FORMAT", "json"),
		ChromePath:       getenv("CHROME_PATH", ""),
	}
}

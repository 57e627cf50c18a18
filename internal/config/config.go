// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Google Custom Search
	GoogleAPIKey string
	GoogleCSEID  string

	// Quota
	DailyRequestLimit int
	QuotaEnforcement  bool

	// Search
	PageCap            int
	SearchTimeout      time.Duration
	SearchMaxRetries   int
	SearchRetryBackoff time.Duration

	// Worker
	ContinuousInterval   time.Duration
	BackfillStepInterval time.Duration

	// Rate Limit
	TriggerRateLimit int // 収集トリガーの毎分あたり受付数

	// Server
	ServerPort  string
	MetricsPort string

	// Provenance
	Provenance string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	if cfg.GoogleAPIKey == "" {
		missing = append(missing, "GOOGLE_API_KEY")
	}

	cfg.GoogleCSEID = os.Getenv("GOOGLE_CSE_ID")
	if cfg.GoogleCSEID == "" {
		missing = append(missing, "GOOGLE_CSE_ID")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DailyRequestLimit = getEnvInt("DAILY_REQUEST_LIMIT", 100)
	cfg.QuotaEnforcement = getEnvBool("QUOTA_ENFORCEMENT", true)
	cfg.PageCap = getEnvInt("PAGE_CAP", 10)
	cfg.SearchTimeout = getEnvDuration("SEARCH_TIMEOUT", 10*time.Second)
	cfg.SearchMaxRetries = getEnvInt("SEARCH_MAX_RETRIES", 3)
	cfg.SearchRetryBackoff = getEnvDuration("SEARCH_RETRY_BACKOFF", 500*time.Millisecond)
	cfg.ContinuousInterval = getEnvDuration("CONTINUOUS_INTERVAL", 6*time.Hour)
	cfg.BackfillStepInterval = getEnvDuration("BACKFILL_STEP_INTERVAL", 1*time.Hour)
	cfg.TriggerRateLimit = getEnvInt("TRIGGER_RATE_LIMIT", 6)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.Provenance = getEnvString("PROVENANCE", "google_cse")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string
	SiteName   string

	// Session
	SessionExpiryDays int

	// Cookie
	CookieSecure bool
	CookieDomain string

	// Auth
	MagicLinkTTL time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitSignIn  int

	// Payment
	PaymentConfirmURL string
	PaymentSecretKey  string
	PaymentTimeout    time.Duration

	// Worker
	SweepInterval time.Duration
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

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.SiteName = os.Getenv("SITE_NAME")
	if cfg.SiteName == "" {
		missing = append(missing, "SITE_NAME")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.SessionExpiryDays = getEnvInt("SESSION_EXPIRY_DAYS", 1)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.MagicLinkTTL = getEnvDuration("MAGIC_LINK_TTL", 15*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 5)
	cfg.PaymentConfirmURL = getEnvString("PAYMENT_CONFIRM_URL", "")
	cfg.PaymentSecretKey = getEnvString("PAYMENT_SECRET_KEY", "")
	cfg.PaymentTimeout = getEnvDuration("PAYMENT_TIMEOUT", 10*time.Second)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", time.Hour)

	return cfg, nil
}

// SessionTTL はセッションの有効期間をDurationで返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionExpiryDays) * 24 * time.Hour
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

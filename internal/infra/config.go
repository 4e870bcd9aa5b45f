package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	BackendBaseURL     string
	PollInterval       time.Duration
	RequestTimeout     time.Duration
	UploadTimeout      time.Duration
	DatabaseURL        string
	StoragePath        string
	DefaultLocale      string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	SessionIdleTTL     time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	SimulatorPort      string
	SimulatorStageTime time.Duration
	SimulatorPublicURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		BackendBaseURL:     strings.TrimRight(getEnv("BACKEND_BASE_URL", "http://localhost:8081/api/v1"), "/"),
		PollInterval:       time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)),
		RequestTimeout:     time.Second * time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 0)),
		UploadTimeout:      time.Second * time.Duration(getEnvInt("UPLOAD_TIMEOUT_SECONDS", 600)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StoragePath:        getEnv("STORAGE_PATH", "./storage"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		SessionIdleTTL:     time.Second * time.Duration(getEnvInt("SESSION_IDLE_TTL_SECONDS", 1800)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		SimulatorPort:      getEnv("SIMULATOR_PORT", "8081"),
		SimulatorStageTime: time.Millisecond * time.Duration(getEnvInt("SIMULATOR_STAGE_MS", 3000)),
		SimulatorPublicURL: os.Getenv("SIMULATOR_PUBLIC_URL"),
	}

	parsed, err := url.Parse(cfg.BackendBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is invalid: %q", cfg.BackendBaseURL)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}

	return cfg, nil
}

// HistoryEnabled reports whether finished jobs should be written to PostgreSQL.
func (c *Config) HistoryEnabled() bool {
	return c != nil && strings.TrimSpace(c.DatabaseURL) != ""
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

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

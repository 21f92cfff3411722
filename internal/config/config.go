// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the alerts service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	SearchURL         string
	SearchAPIKey      string
	ProgramsIndex     string
	InstitutionsIndex string
	SearchRatePerSec  float64
	DetectPageSize    int
	ExecutePageSize   int

	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	MailFrom       string
	MailRatePerSec float64
	AppBaseURL     string

	CheckIntervalHours int    // How often the saved-search check fires
	DeadlineCron       string // cron spec for the deadline cascade
	DeadlineDaysBefore int
	WorkerCount        int
	RunTimeout         time.Duration
	ItemTimeout        time.Duration
}

// Load reads environment variables and returns a validated Config.
// A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg := &Config{
		Port:              getEnv("ALERTS_PORT", "8083"),
		DatabaseURL:       dbURL,
		RedisURL:          redisURL,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		SearchURL:         getEnv("SEARCH_URL", "http://localhost:7700"),
		SearchAPIKey:      os.Getenv("SEARCH_API_KEY"),
		ProgramsIndex:     getEnv("SEARCH_PROGRAMS_INDEX", "programs"),
		InstitutionsIndex: getEnv("SEARCH_INSTITUTIONS_INDEX", "institutions"),
		SMTPHost:          os.Getenv("SMTP_HOST"),
		SMTPPort:          getEnv("SMTP_PORT", "465"),
		SMTPUser:          os.Getenv("SMTP_USER"),
		SMTPPass:          os.Getenv("SMTP_PASS"),
		MailFrom:          os.Getenv("MAIL_FROM"),
		AppBaseURL:        getEnv("APP_BASE_URL", "http://localhost:3000"),
		DeadlineCron:      getEnv("DEADLINE_CRON", "0 8 * * *"),
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = cfg.SMTPUser
	}

	var err error
	if cfg.CheckIntervalHours, err = positiveInt("CHECK_INTERVAL_HOURS", 6); err != nil {
		return nil, err
	}
	if cfg.DeadlineDaysBefore, err = positiveInt("DEADLINE_DAYS_BEFORE", 7); err != nil {
		return nil, err
	}
	if cfg.DeadlineDaysBefore > 30 {
		return nil, fmt.Errorf("DEADLINE_DAYS_BEFORE must be between 1 and 30, got %d", cfg.DeadlineDaysBefore)
	}
	if cfg.WorkerCount, err = positiveInt("WORKER_COUNT", 4); err != nil {
		return nil, err
	}
	if cfg.DetectPageSize, err = positiveInt("DETECT_PAGE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.ExecutePageSize, err = positiveInt("EXECUTE_PAGE_SIZE", 20); err != nil {
		return nil, err
	}
	runMinutes, err := positiveInt("RUN_TIMEOUT_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.RunTimeout = time.Duration(runMinutes) * time.Minute
	itemSeconds, err := positiveInt("ITEM_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, err
	}
	cfg.ItemTimeout = time.Duration(itemSeconds) * time.Second
	if cfg.SearchRatePerSec, err = positiveFloat("SEARCH_RATE_PER_SEC", 10); err != nil {
		return nil, err
	}
	if cfg.MailRatePerSec, err = positiveFloat("MAIL_RATE_PER_SEC", 5); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func positiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func positiveFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive number, got %q", key, s)
	}
	return v, nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

type Config struct {
	TelegramToken         string
	TelegramAPIURL        string
	TelegramWebhookURL    string
	TelegramWebhookSecret string
	TelegramUpdateMode    string

	LinkedInClientID     string
	LinkedInClientSecret string
	LinkedInRedirectURL  string
	LinkedInState        string

	MongoDBURI    string
	DatabaseName  string
	EncryptionKey string

	KafkaBrokers []string
	KafkaTopic   string

	Port        string
	Environment string
	LogLevel    string
	HTTPTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	required := []string{
		"TELEGRAM_TOKEN",
		"LINKEDIN_CLIENT_ID",
		"LINKEDIN_CLIENT_SECRET",
		"LINKEDIN_REDIRECT_URL",
		"LINKEDIN_STATE",
		"MONGODB_URI",
		"ENCRYPTION_KEY",
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	timeout, err := time.ParseDuration(getEnv("HTTP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg := &Config{
		TelegramToken:         os.Getenv("TELEGRAM_TOKEN"),
		TelegramAPIURL:        os.Getenv("TELEGRAM_API_URL"),
		TelegramWebhookURL:    os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramWebhookSecret: os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		TelegramUpdateMode:    strings.ToLower(getEnv("TELEGRAM_UPDATE_MODE", ModeWebhook)),
		LinkedInClientID:      os.Getenv("LINKEDIN_CLIENT_ID"),
		LinkedInClientSecret:  os.Getenv("LINKEDIN_CLIENT_SECRET"),
		LinkedInRedirectURL:   os.Getenv("LINKEDIN_REDIRECT_URL"),
		LinkedInState:         os.Getenv("LINKEDIN_STATE"),
		MongoDBURI:            os.Getenv("MONGODB_URI"),
		DatabaseName:          getEnv("DATABASE_NAME", "social_link_bot"),
		EncryptionKey:         os.Getenv("ENCRYPTION_KEY"),
		KafkaBrokers:          splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "linkedin.accounts"),
		Port:                  getEnv("PORT", "8080"),
		Environment:           getEnv("APP_ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		HTTPTimeout:           timeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks combinations that a plain presence check cannot.
func (c *Config) Validate() error {
	switch c.TelegramUpdateMode {
	case ModeWebhook:
		if c.TelegramWebhookURL == "" {
			return fmt.Errorf("TELEGRAM_WEBHOOK_URL is required in %s mode", ModeWebhook)
		}
	case ModePolling:
	default:
		return fmt.Errorf("invalid TELEGRAM_UPDATE_MODE %q: want %s or %s", c.TelegramUpdateMode, ModeWebhook, ModePolling)
	}

	if strings.ContainsAny(c.LinkedInState, ".") {
		return fmt.Errorf("LINKEDIN_STATE must not contain '.'")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

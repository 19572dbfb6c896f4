package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvLocal      = "local"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

type Config struct {
	AppName        string
	Environment    string
	LogLevel       string
	HTTPHost       string
	HTTPPort       string
	MySQLDSN       string
	SecretKey      string
	AccessTokenTTL time.Duration
	ActionTokenTTL time.Duration
	SMTP           SMTPConfig

	// Links embedded in outbound emails, e.g. https://example.com/activate.
	AccountActivationURL string
	PasswordResetURL     string
}

type SMTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	FromName  string
	FromEmail string
}

// Enabled reports whether outbound email is configured. When false the
// mailer only logs what it would have sent.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.FromEmail != ""
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	secretKey := os.Getenv("SECRET_KEY")
	if secretKey == "" {
		return nil, errors.New("SECRET_KEY environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		AppName:        getEnv("APP_NAME", "accounts"),
		Environment:    getEnv("ENVIRONMENT", EnvLocal),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		HTTPHost:       getEnv("HTTP_HOST", ""),
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		MySQLDSN:       mysqlDSN,
		SecretKey:      secretKey,
		AccessTokenTTL: getDurationEnv("ACCESS_TOKEN_TTL_MINUTES", 8*24*time.Hour),
		ActionTokenTTL: getDurationEnv("ACTION_TOKEN_TTL_MINUTES", 48*time.Hour),
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getIntEnv("SMTP_PORT", 587),
			User:      getEnv("SMTP_USER", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromName:  getEnv("EMAILS_FROM_NAME", ""),
			FromEmail: getEnv("EMAILS_FROM_EMAIL", ""),
		},
		AccountActivationURL: getEnv("ACCOUNT_ACTIVATION_URL", "http://localhost:8080/auth/users/verify"),
		PasswordResetURL:     getEnv("PASSWORD_RESET_URL", "http://localhost:8080/reset-password"),
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

// IsLocal reports whether the service runs in the local development
// environment, which relaxes password strength enforcement.
func (c *Config) IsLocal() bool {
	return c.Environment == EnvLocal
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

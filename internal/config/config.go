package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	ProviderFinnhub = "finnhub"
	ProviderYahoo   = "yahoo"
)

type Config struct {
	// Secrets (from .env)
	FinnhubAPIKey   string
	WebhookURL      string
	BotName         string
	APIKey          string
	CORSAllowOrigin string

	// Database
	DBHost       string
	DBPort       int
	DBName       string
	DBUser       string
	DBPassword   string
	DBSchema     string
	DBMaxConns   int
	DBRequireTLS bool

	// Quotes
	QuoteProvider          string
	FinnhubBaseURL         string
	QuoteRequestsPerMinute int
	QuoteTimeout           time.Duration

	// Bot
	SchemaLayoutFile string
	Timezone         string

	// Logging
	LogLevel  string
	LogFormat string

	// API
	APIPort int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		FinnhubAPIKey:   envStr("FINNHUB_API_KEY", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		BotName:         envStr("BOT_NAME", "StockBot"),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DBHost:       envStr("DB_HOST", "localhost"),
		DBPort:       envInt("DB_PORT", 5432),
		DBName:       envStr("DB_NAME", "stockbot"),
		DBUser:       envStr("DB_USER", ""),
		DBPassword:   envStr("DB_PASSWORD", ""),
		DBSchema:     envStr("DB_SCHEMA", "public"),
		DBMaxConns:   envInt("DB_MAX_CONNS", 4),
		DBRequireTLS: envBool("DB_REQUIRE_TLS", false),

		// Quotes
		QuoteProvider:          strings.ToLower(envStr("QUOTE_PROVIDER", ProviderFinnhub)),
		FinnhubBaseURL:         envStr("FINNHUB_BASE_URL", ""),
		QuoteRequestsPerMinute: envInt("QUOTE_REQUESTS_PER_MINUTE", 60),
		QuoteTimeout:           envDuration("QUOTE_TIMEOUT_SECONDS", 10*time.Second),

		// Bot
		SchemaLayoutFile: envStr("SCHEMA_LAYOUT_FILE", ""),
		Timezone:         envStr("BOT_TIMEZONE", "Local"),

		// Logging
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),

		// API
		APIPort: envInt("API_PORT", 3001),
	}

	return cfg, nil
}

// Validate returns every hard error at once and logs the soft ones. Quote
// provider settings are left to ValidateQuotes.
func (c *Config) Validate(log logrus.FieldLogger) error {
	var errs []string

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("BOT_TIMEZONE: %v", err))
	}
	if c.DBMaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}

	if c.DBUser == "" {
		log.Warn("DB_USER not set, relying on the server's default role")
	}
	if c.QuoteRequestsPerMinute <= 0 {
		log.Warn("QUOTE_REQUESTS_PER_MINUTE <= 0, quote requests are not paced")
	}
	if c.APIKey == "" {
		log.Warn("API_KEY not set, REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidateQuotes checks the quote provider settings. Only commands that
// fetch quotes need them.
func (c *Config) ValidateQuotes() error {
	switch c.QuoteProvider {
	case ProviderFinnhub:
		if c.FinnhubAPIKey == "" {
			return errors.New("config validation failed: FINNHUB_API_KEY is required when QUOTE_PROVIDER=finnhub")
		}
	case ProviderYahoo:
	default:
		return fmt.Errorf("config validation failed: QUOTE_PROVIDER %q is not one of finnhub, yahoo", c.QuoteProvider)
	}
	return nil
}

func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Print(log logrus.FieldLogger) {
	log.WithFields(logrus.Fields{
		"db":        fmt.Sprintf("%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName),
		"schema":    c.DBSchema,
		"maxConns":  c.DBMaxConns,
		"provider":  c.QuoteProvider,
		"perMinute": c.QuoteRequestsPerMinute,
		"timeout":   c.QuoteTimeout,
		"layout":    boolLabel(c.SchemaLayoutFile != "", c.SchemaLayoutFile, "built-in"),
		"timezone":  c.Timezone,
		"webhook":   boolLabel(c.WebhookURL != "", "configured", "console only"),
	}).Info("stockbot configuration")
}

func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + boolLabel(c.DBRequireTLS, "require", "disable"),
	}
	return u.String()
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envDuration reads a whole or fractional number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	secs := envFloat(key, -1)
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}

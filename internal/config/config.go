package config

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Content selector backends.
const (
	SelectorPostgres      = "postgres"
	SelectorElasticsearch = "elasticsearch"
	SelectorStatic        = "static"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	Enabled  bool   `envconfig:"ENABLED" default:"true"`
	SiteName string `envconfig:"SITE_NAME" default:"RivianTrackr"`

	Provider        string `envconfig:"PROVIDER" default:"openai"`
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	Model           string `envconfig:"MODEL" default:"gpt-4.1-mini"`
	MaxTokens       int    `envconfig:"MAX_TOKENS" default:"1200"`

	MaxDocuments int `envconfig:"MAX_DOCUMENTS" default:"6"`

	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"1h"`
	CacheTTLMin time.Duration `envconfig:"CACHE_TTL_MIN" default:"60s"`
	CacheTTLMax time.Duration `envconfig:"CACHE_TTL_MAX" default:"24h"`

	// 0 disables the provider budget.
	GlobalRateLimit int           `envconfig:"GLOBAL_RATE_LIMIT" default:"30"`
	IPRateLimit     int           `envconfig:"IP_RATE_LIMIT" default:"10"`
	RateWindowGrace time.Duration `envconfig:"RATE_WINDOW_GRACE" default:"10s"`

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"25s"`
	MaxRetries      int           `envconfig:"MAX_RETRIES" default:"2"`
	RetryBaseDelay  time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
	SingleFlight    bool          `envconfig:"SINGLE_FLIGHT" default:"true"`

	PromptTokenBudget int `envconfig:"PROMPT_TOKEN_BUDGET" default:"0"`
	ExcerptChars      int `envconfig:"EXCERPT_CHARS" default:"300"`
	BodyChars         int `envconfig:"BODY_CHARS" default:"1500"`

	Store       string `envconfig:"STORE" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"aisearch.db"`

	Selector            string `envconfig:"SELECTOR" default:"static"`
	ElasticsearchURL    string `envconfig:"ELASTICSEARCH_URL" default:"http://localhost:9200"`
	ElasticsearchIndex  string `envconfig:"ELASTICSEARCH_INDEX" default:"articles"`
	StaticDocumentsPath string `envconfig:"STATIC_DOCUMENTS_PATH"`

	AdminToken        string `envconfig:"ADMIN_TOKEN"`
	TrustProxyHeaders bool   `envconfig:"TRUST_PROXY_HEADERS" default:"false"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("AISEARCH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects unknown backend names and settings that need a
// connection string to be usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("invalid AISEARCH_PROVIDER %q (expected openai or anthropic)", c.Provider)
	}

	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("AISEARCH_DATABASE_URL is required when AISEARCH_STORE=postgres")
		}
	default:
		return fmt.Errorf("invalid AISEARCH_STORE %q (expected memory, postgres or sqlite)", c.Store)
	}

	switch c.Selector {
	case SelectorStatic, SelectorElasticsearch:
	case SelectorPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("AISEARCH_DATABASE_URL is required when AISEARCH_SELECTOR=postgres")
		}
	default:
		return fmt.Errorf("invalid AISEARCH_SELECTOR %q (expected postgres, elasticsearch or static)", c.Selector)
	}

	if c.MaxDocuments <= 0 {
		return fmt.Errorf("AISEARCH_MAX_DOCUMENTS must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("AISEARCH_MAX_RETRIES must not be negative")
	}
	if c.CacheTTLMin > c.CacheTTLMax {
		return fmt.Errorf("AISEARCH_CACHE_TTL_MIN must not exceed AISEARCH_CACHE_TTL_MAX")
	}

	return nil
}

// HasProviderCredentials reports whether the selected provider has an API key.
func (c *Config) HasProviderCredentials() bool {
	switch c.Provider {
	case ProviderAnthropic:
		return c.AnthropicAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) HasAdminToken() bool {
	return c.AdminToken != ""
}

// NeedsDatabase reports whether any configured backend uses Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Store == StorePostgres || c.Selector == SelectorPostgres
}

// SlogLevel maps LogLevel to a slog.Level. DEBUG forces debug logging.
func (c *Config) SlogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

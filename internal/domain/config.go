package domain

import (
	"os"
	"strconv"
	"time"
)

// Config holds the complete Kestrel configuration. Read at startup,
// immutable thereafter; the only runtime-mutable pieces are the fraud
// threshold and the pattern snapshot, which go through the analyzer's
// validated update operations.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Analysis settings
	FraudThreshold float64        `json:"fraudThreshold"`
	Patterns       *PatternConfig `json:"patterns"`

	// External collaborators
	Model   ModelConfig   `json:"model"`
	History HistoryConfig `json:"history"`
	Ledger  LedgerConfig  `json:"ledger"`

	// Auth settings
	Auth AuthConfig `json:"auth"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ModelConfig holds settings for the external language-model collaborator.
// Temperature and MaxOutputTokens are passed through to the model call and
// do not affect decision logic.
type ModelConfig struct {
	APIKey          string  `json:"-"`
	ModelName       string  `json:"modelName"`
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TimeoutSecs     int     `json:"timeoutSecs"`
}

// HistoryConfig holds settings for the transaction-history service client.
type HistoryConfig struct {
	Addr         string `json:"addr"`
	TimeoutSecs  int    `json:"timeoutSecs"`
	CacheTTLSecs int    `json:"cacheTtlSecs"`
}

// LedgerConfig holds settings for the ledger-writer service client.
type LedgerConfig struct {
	Addr        string `json:"addr"`
	TimeoutSecs int    `json:"timeoutSecs"`
}

// AuthConfig holds JWT verification settings. When PublicKeyPath is empty
// the auth middleware runs in permissive mode and only sanity-checks the
// bearer token shape.
type AuthConfig struct {
	PublicKeyPath string `json:"publicKeyPath"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns a default single-node configuration:
// SQLite repository, in-memory cache, channel bus, no model capability.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		FraudThreshold: 0.7,
		Patterns:       DefaultPatternConfig(),
		Model: ModelConfig{
			ModelName:       "gemini-1.5-flash",
			Temperature:     0.1,
			MaxOutputTokens: 1024,
			TimeoutSecs:     30,
		},
		History: HistoryConfig{
			Addr:         "http://transactionhistory:8080",
			TimeoutSecs:  5,
			CacheTTLSecs: 60,
		},
		Ledger: LedgerConfig{
			Addr:        "http://ledgerwriter:8080",
			TimeoutSecs: 10,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromEnv builds the configuration from defaults plus environment
// overrides.
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Server.Port = envInt("PORT", cfg.Server.Port)
	cfg.FraudThreshold = envFloat("FRAUD_THRESHOLD", cfg.FraudThreshold)

	cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Model.ModelName = envStr("GEMINI_MODEL", cfg.Model.ModelName)
	cfg.Model.Temperature = envFloat("GEMINI_TEMPERATURE", cfg.Model.Temperature)
	cfg.Model.MaxOutputTokens = envInt("GEMINI_MAX_OUTPUT_TOKENS", cfg.Model.MaxOutputTokens)

	cfg.History.Addr = envStr("HISTORY_API_ADDR", cfg.History.Addr)
	cfg.Ledger.Addr = envStr("TRANSACTIONS_API_ADDR", cfg.Ledger.Addr)

	cfg.Auth.PublicKeyPath = envStr("PUB_KEY_PATH", cfg.Auth.PublicKeyPath)

	cfg.Repository.Driver = envStr("KESTREL_DB_DRIVER", cfg.Repository.Driver)
	cfg.Repository.SQLitePath = envStr("KESTREL_SQLITE_PATH", cfg.Repository.SQLitePath)
	cfg.Repository.PostgresHost = envStr("KESTREL_PG_HOST", cfg.Repository.PostgresHost)
	cfg.Repository.PostgresPort = envInt("KESTREL_PG_PORT", cfg.Repository.PostgresPort)
	cfg.Repository.PostgresUser = envStr("KESTREL_PG_USER", cfg.Repository.PostgresUser)
	cfg.Repository.PostgresPassword = os.Getenv("KESTREL_PG_PASSWORD")
	cfg.Repository.PostgresDB = envStr("KESTREL_PG_DB", cfg.Repository.PostgresDB)

	cfg.Cache.Type = envStr("KESTREL_CACHE", cfg.Cache.Type)
	cfg.Cache.RedisAddr = envStr("KESTREL_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = os.Getenv("KESTREL_REDIS_PASSWORD")
	cfg.Cache.EnableTwoPhase = envBool("KESTREL_CACHE_TWO_PHASE", cfg.Cache.EnableTwoPhase)

	cfg.EventBus.Type = envStr("KESTREL_BUS", cfg.EventBus.Type)
	cfg.EventBus.NATSUrl = envStr("KESTREL_NATS_URL", cfg.EventBus.NATSUrl)
	cfg.EventBus.NATSToken = os.Getenv("KESTREL_NATS_TOKEN")

	cfg.Logging.Level = envStr("LOG_LEVEL", cfg.Logging.Level)

	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

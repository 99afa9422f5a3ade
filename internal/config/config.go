package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Cache    CacheConfig
	Ingest   IngestConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token parameters.
type AuthConfig struct {
	JWTSecret         string
	SessionTTLMinutes int
}

// CacheConfig defines TTLs and coordination timing for the cache tiers.
// Entitlement lookups use a short TTL because staleness across a
// subscription cut-off is a correctness cost; content metadata changes
// rarely and tolerates a longer one.
type CacheConfig struct {
	EntitlementTTLSeconds  int
	ContentTTLSeconds      int
	RetryBackoffMillis     int
	FetchClaimTTLMillis    int
	FollowerPollMillis     int
	VersionFloorTTLMinutes int
	JanitorIntervalSeconds int
}

// IngestConfig authenticates the payment and catalog-ingestion collaborators.
// KeyHash is a bcrypt hash of the shared ingest key; when unset, Key is
// hashed at startup (development convenience only).
type IngestConfig struct {
	KeyHash    string
	Key        string
	BcryptCost int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "stream-access-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTTLMinutes: getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 60),
		},
		Cache: CacheConfig{
			EntitlementTTLSeconds:  getEnvAsInt("CACHE_ENTITLEMENT_TTL_SECONDS", 30),
			ContentTTLSeconds:      getEnvAsInt("CACHE_CONTENT_TTL_SECONDS", 300),
			RetryBackoffMillis:     getEnvAsInt("CACHE_RETRY_BACKOFF_MILLIS", 100),
			FetchClaimTTLMillis:    getEnvAsInt("CACHE_FETCH_CLAIM_TTL_MILLIS", 3000),
			FollowerPollMillis:     getEnvAsInt("CACHE_FOLLOWER_POLL_MILLIS", 50),
			VersionFloorTTLMinutes: getEnvAsInt("CACHE_VERSION_FLOOR_TTL_MINUTES", 15),
			JanitorIntervalSeconds: getEnvAsInt("CACHE_JANITOR_INTERVAL_SECONDS", 60),
		},
		Ingest: IngestConfig{
			KeyHash:    os.Getenv("INGEST_KEY_HASH"),
			Key:        getEnv("INGEST_KEY", "dev-ingest-key"),
			BcryptCost: getEnvAsInt("INGEST_BCRYPT_COST", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns the session token lifetime.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// EntitlementTTL returns the cache TTL for entitlement lookups.
func (c CacheConfig) EntitlementTTL() time.Duration {
	return time.Duration(c.EntitlementTTLSeconds) * time.Second
}

// ContentTTL returns the cache TTL for content metadata.
func (c CacheConfig) ContentTTL() time.Duration {
	return time.Duration(c.ContentTTLSeconds) * time.Second
}

// RetryBackoff returns the pause before the single origin-fetch retry.
func (c CacheConfig) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMillis) * time.Millisecond
}

// FetchClaimTTL returns how long a replica may hold a fetch claim.
func (c CacheConfig) FetchClaimTTL() time.Duration {
	return time.Duration(c.FetchClaimTTLMillis) * time.Millisecond
}

// FollowerPoll returns how often a non-owning replica re-checks the shared tier.
func (c CacheConfig) FollowerPoll() time.Duration {
	return time.Duration(c.FollowerPollMillis) * time.Millisecond
}

// VersionFloorTTL returns how long invalidation floors persist in the shared tier.
func (c CacheConfig) VersionFloorTTL() time.Duration {
	return time.Duration(c.VersionFloorTTLMinutes) * time.Minute
}

// JanitorInterval returns the local-tier sweep interval.
func (c CacheConfig) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

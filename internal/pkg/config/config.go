package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection, etc.), security settings
// - default: Values common across all environments (timezone, timeout, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server ServerConfig
	DB     DBConfig
	CORS   CORSConfig
	Log    LogConfig
	Auth   AuthConfig
	Ingest IngestConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// DBConfig covers both configuration paths named in the spec: DATABASE_URL
// (parsed as a URI) and the discrete ConnectionStrings/Database fields used
// to build one when no URL is set.
type DBConfig struct {
	URL             string `envconfig:"DATABASE_URL"`
	Host            string `envconfig:"DB_HOST" default:"localhost"`
	Port            string `envconfig:"DB_PORT" default:"5432"`
	User            string `envconfig:"DB_USER" default:"forwarder"`
	Password        string `envconfig:"DB_PASSWORD" default:"forwarder"`
	DBName          string `envconfig:"DB_NAME" default:"forwarder"`
	SSLMode         string `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConns        int32  `envconfig:"DB_MAX_CONNS" default:"20"`
	MigrationsTable string `envconfig:"DB_MIGRATIONS_TABLE" default:"forwarder_schema_migrations"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"*"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,X-Alchemy-Signature,X-Signature,X-Hub-Signature-256"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"UTC"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.000Z07:00"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"0"`
}

// AuthConfig backs the authenticator (component B). ProviderSecrets models
// the Authentication/ProviderSecrets/<provider> config path; the
// SECRET_<PROVIDER> environment variable is resolved directly by the
// authenticator since its name is provider-dependent and can't be bound to
// a struct field. Strict is reserved per the spec's open question and is
// never read by the authenticator.
type AuthConfig struct {
	Enabled         bool              `envconfig:"ENABLE_AUTH" default:"false"`
	Strict          bool              `envconfig:"STRICT_WEBHOOK_AUTH" default:"false"`
	AllowedIPs      []string          `envconfig:"ALLOWED_IPS"`
	ProviderSecrets map[string]string `envconfig:"PROVIDER_SECRETS"`
}

// IngestConfig tunes the pipeline's edge cases: body-size cap, dedup cache
// shape, migration orchestration, and the retry policy's backoff curve.
type IngestConfig struct {
	MaxBodyBytes           int64         `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	DedupCacheTTL          time.Duration `envconfig:"DEDUP_CACHE_TTL" default:"5m"`
	DedupCacheSoftLimit    int           `envconfig:"DEDUP_CACHE_SOFT_LIMIT" default:"10000"`
	RunMigrationsOnStartup bool          `envconfig:"RUN_MIGRATIONS_ON_STARTUP" default:"false"`
	RetryMaxAttempts       int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	RetryInitialDelay      time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms"`
	RetryMaxDelay          time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`
	RetryMultiplier        float64       `envconfig:"RETRY_MULTIPLIER" default:"2.0"`
}

// BuildDSN assembles a connection string from the discrete fields. Used
// only when DATABASE_URL is unset.
func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889",
		},
		DB: DBConfig{
			Host:            "localhost",
			Port:            "15433",
			User:            "test",
			Password:        "test",
			DBName:          "test_db",
			SSLMode:         "disable",
			MaxConns:        20,
			MigrationsTable: "forwarder_schema_migrations",
		},
		CORS: CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
		},
		Log: LogConfig{
			Level:      "error",
			TimeZone:   "UTC",
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		},
		Ingest: IngestConfig{
			MaxBodyBytes:        1 << 20,
			DedupCacheTTL:       5 * time.Minute,
			DedupCacheSoftLimit: 10000,
			RetryMaxAttempts:    3,
			RetryInitialDelay:   100 * time.Millisecond,
			RetryMaxDelay:       5 * time.Second,
			RetryMultiplier:     2.0,
		},
	}
}

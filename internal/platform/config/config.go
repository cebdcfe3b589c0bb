package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const insecureDefaultJWTSecret = "a-very-secret-key-should-be-longer-and-random"

// Notification backends understood by NOTIFY_BACKEND.
const (
	NotifyLog     = "log"
	NotifyRedis   = "redis"
	NotifyAsynq   = "asynq"
	NotifyPosthog = "posthog"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL        string
	Port               string            `validate:"required,numeric"`
	IsProduction       bool
	EnableDBCheck      bool
	JWTSecret          string            `validate:"required,min=16"`
	JWTIssuer          string            `validate:"required"`
	MigrationsPath     string            `validate:"required"`
	RateLimit          string            `validate:"required"`
	CORSAllowedOrigins []string
	PosthogAPIKey      string
	PosthogEndpoint    string            `validate:"omitempty,url"`
	ServiceAPIKeys     map[string]string `validate:"dive,len=64,hexadecimal"`

	Records RecordsConfig
	Notify  NotifyConfig
}

// RecordsConfig configures the records store and its payload ceilings.
type RecordsConfig struct {
	MigrationMode         string        `validate:"required,oneof=legacy_only write_v2_read_legacy full_v2_no_legacy_mirror full_v2_with_legacy_mirror"`
	MaxRecordCount        int           `validate:"min=1"`
	MaxFieldsPerRecord    int           `validate:"min=1"`
	MaxRecordChars        int           `validate:"min=1"`
	MaxPayloadChars       int           `validate:"min=1,gtefield=MaxRecordChars"`
	MoneyMaxAbsoluteCents int64         `validate:"min=1,max=9007199254740991"`
	StorageTimeout        time.Duration `validate:"gt=0"`
	LinkBaseURL           string        `validate:"omitempty,url"`
	Timezone              string        `validate:"omitempty,timezone"`
}

// NotifyConfig configures where payment events are delivered.
type NotifyConfig struct {
	Backends      []string `validate:"dive,oneof=log redis asynq posthog"`
	RedisAddr     string
	RedisPassword string
	RedisDB       int    `validate:"min=0"`
	RedisKey      string `validate:"required"`

	// WorkerBackends are where the asynq worker delivers queued events.
	WorkerBackends    []string `validate:"dive,oneof=log redis posthog"`
	WorkerConcurrency int      `validate:"min=1"`
}

// Location resolves Timezone, falling back to the server's zone when unset.
func (c RecordsConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ForWorker returns the configuration the asynq worker delivers with.
func (c NotifyConfig) ForWorker() NotifyConfig {
	out := c
	out.Backends = c.WorkerBackends
	return out
}

// Uses reports whether backend is enabled in NOTIFY_BACKEND.
func (c NotifyConfig) Uses(backend string) bool {
	for _, b := range c.Backends {
		if b == backend {
			return true
		}
	}
	return false
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("JWT_SECRET", insecureDefaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "client-records-app")
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("RATE_LIMIT", "120-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("POSTHOG_API_KEY", "")
	v.SetDefault("SERVICE_API_KEYS", "")
	v.SetDefault("POSTHOG_ENDPOINT", "https://eu.i.posthog.com")

	v.SetDefault("RECORDS_MIGRATION_MODE", "legacy_only")
	v.SetDefault("RECORDS_MAX_RECORD_COUNT", 5000)
	v.SetDefault("RECORDS_MAX_FIELDS_PER_RECORD", 28)
	v.SetDefault("RECORDS_MAX_RECORD_CHARS", 12000)
	v.SetDefault("RECORDS_MAX_PAYLOAD_CHARS", 4000000)
	v.SetDefault("RECORDS_MONEY_MAX_ABSOLUTE_CENTS", int64(100_000_000_000))
	v.SetDefault("RECORDS_STORAGE_TIMEOUT", "10s")
	v.SetDefault("RECORDS_LINK_BASE_URL", "")
	v.SetDefault("RECORDS_TIMEZONE", "")

	v.SetDefault("NOTIFY_BACKEND", NotifyLog)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFY_REDIS_KEY", "records:payment_events")
	v.SetDefault("NOTIFY_WORKER_BACKEND", "log,redis")
	v.SetDefault("NOTIFY_WORKER_CONCURRENCY", 5)

	v.AutomaticEnv()

	serviceKeys, err := parseServiceKeys(v.GetString("SERVICE_API_KEYS"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		DatabaseURL:        v.GetString("PGSQL_URL"),
		Port:               v.GetString("PORT"),
		IsProduction:       v.GetBool("IS_PRODUCTION"),
		EnableDBCheck:      v.GetBool("ENABLE_DB_CHECK"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		JWTIssuer:          v.GetString("JWT_ISSUER"),
		MigrationsPath:     v.GetString("MIGRATIONS_PATH"),
		RateLimit:          v.GetString("RATE_LIMIT"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		PosthogAPIKey:      v.GetString("POSTHOG_API_KEY"),
		PosthogEndpoint:    v.GetString("POSTHOG_ENDPOINT"),
		ServiceAPIKeys:     serviceKeys,
		Records: RecordsConfig{
			MigrationMode:         strings.ToLower(strings.TrimSpace(v.GetString("RECORDS_MIGRATION_MODE"))),
			MaxRecordCount:        v.GetInt("RECORDS_MAX_RECORD_COUNT"),
			MaxFieldsPerRecord:    v.GetInt("RECORDS_MAX_FIELDS_PER_RECORD"),
			MaxRecordChars:        v.GetInt("RECORDS_MAX_RECORD_CHARS"),
			MaxPayloadChars:       v.GetInt("RECORDS_MAX_PAYLOAD_CHARS"),
			MoneyMaxAbsoluteCents: v.GetInt64("RECORDS_MONEY_MAX_ABSOLUTE_CENTS"),
			StorageTimeout:        v.GetDuration("RECORDS_STORAGE_TIMEOUT"),
			LinkBaseURL:           v.GetString("RECORDS_LINK_BASE_URL"),
			Timezone:              v.GetString("RECORDS_TIMEZONE"),
		},
		Notify: NotifyConfig{
			Backends:      splitList(strings.ToLower(v.GetString("NOTIFY_BACKEND"))),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			RedisKey:      v.GetString("NOTIFY_REDIS_KEY"),

			WorkerBackends:    splitList(strings.ToLower(v.GetString("NOTIFY_WORKER_BACKEND"))),
			WorkerConcurrency: v.GetInt("NOTIFY_WORKER_CONCURRENCY"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if (cfg.Notify.Uses(NotifyRedis) || cfg.Notify.Uses(NotifyAsynq)) && cfg.Notify.RedisAddr == "" {
		return nil, fmt.Errorf("invalid configuration: REDIS_ADDR is required for NOTIFY_BACKEND %v", cfg.Notify.Backends)
	}

	if cfg.DatabaseURL == "" {
		slog.Warn("PGSQL_URL not set, records storage is unconfigured and record requests will return 503")
	}
	if cfg.JWTSecret == insecureDefaultJWTSecret {
		if cfg.IsProduction {
			return nil, fmt.Errorf("invalid configuration: JWT_SECRET must be set in production")
		}
		slog.Warn("JWT_SECRET not set, using default insecure key")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseServiceKeys reads "name=sha256hex" pairs separated by commas.
func parseServiceKeys(raw string) (map[string]string, error) {
	keys := make(map[string]string)
	for _, pair := range splitList(raw) {
		name, key, ok := strings.Cut(pair, "=")
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if !ok || name == "" || key == "" {
			return nil, fmt.Errorf("SERVICE_API_KEYS entry %q must look like name=sha256hex", name)
		}
		if _, dup := keys[name]; dup {
			return nil, fmt.Errorf("SERVICE_API_KEYS has duplicate name %q", name)
		}
		keys[name] = strings.ToLower(key)
	}
	return keys, nil
}

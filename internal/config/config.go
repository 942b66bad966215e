// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values for DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseDriver selects the store: "postgres" (default) or "sqlite".
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	// DatabaseURL is the Postgres DSN, or the SQLite database file path when DatabaseDriver is sqlite.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// SiteTimezone is the IANA zone that defines the site-local day (e.g. "Asia/Jakarta").
	SiteTimezone string `mapstructure:"SITE_TIMEZONE"`
	// ActiveSiteID is used when an allocation request does not name a site. Empty means the only site in the store.
	ActiveSiteID string `mapstructure:"ACTIVE_SITE_ID"`
	// AccuracyCapMeters bounds the reported positioning accuracy credited by the geofence.
	AccuracyCapMeters float64 `mapstructure:"ACCURACY_CAP_METERS"`
	// LocationBypass skips the location and geofence checks; the site center stands in for the applicant.
	// Must not be true when Env is production.
	LocationBypass bool `mapstructure:"LOCATION_BYPASS"`
	// AllocationMaxAttempts bounds retries of the ledger phase on contention or store failure.
	AllocationMaxAttempts int `mapstructure:"ALLOCATION_MAX_ATTEMPTS"`
	// IdentityClaimPattern is the regular expression a normalized identity claim must match.
	IdentityClaimPattern string `mapstructure:"IDENTITY_CLAIM_PATTERN"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used by cmd/stafftoken.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file. When empty, verifier auth is disabled.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim of staff tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim of staff tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTStaffTTL is the staff token lifetime (e.g. "12h").
	JWTStaffTTL string `mapstructure:"JWT_STAFF_TTL"`

	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on all telemetry.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, the gRPC server emits request events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_DRIVER", DriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SITE_TIMEZONE", "UTC")
	v.SetDefault("ACTIVE_SITE_ID", "")
	v.SetDefault("ACCURACY_CAP_METERS", 150.0)
	v.SetDefault("LOCATION_BYPASS", false)
	v.SetDefault("ALLOCATION_MAX_ATTEMPTS", 3)
	v.SetDefault("IDENTITY_CLAIM_PATTERN", `^[0-9]{16}$`)
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "geoqueue-auth")
	v.SetDefault("JWT_AUDIENCE", "geoqueue-verify")
	v.SetDefault("JWT_STAFF_TTL", "12h")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "geoqueue")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "geoqueue-telemetry")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "geoqueue-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	if cfg.DatabaseDriver != DriverPostgres && cfg.DatabaseDriver != DriverSQLite {
		return nil, fmt.Errorf("config: DATABASE_DRIVER must be %q or %q", DriverPostgres, DriverSQLite)
	}

	if _, err := time.LoadLocation(cfg.SiteTimezone); err != nil {
		return nil, fmt.Errorf("config: SITE_TIMEZONE: %w", err)
	}

	if cfg.AccuracyCapMeters <= 0 || cfg.AccuracyCapMeters > 5000 {
		return nil, errors.New("config: ACCURACY_CAP_METERS must be in (0, 5000]")
	}

	if cfg.AllocationMaxAttempts == 0 {
		cfg.AllocationMaxAttempts = 3
	}
	if cfg.AllocationMaxAttempts < 1 || cfg.AllocationMaxAttempts > 10 {
		return nil, errors.New("config: ALLOCATION_MAX_ATTEMPTS must be between 1 and 10")
	}

	if _, err := regexp.Compile(cfg.IdentityClaimPattern); err != nil {
		return nil, fmt.Errorf("config: IDENTITY_CLAIM_PATTERN: %w", err)
	}

	if cfg.IsProduction() {
		if cfg.LocationBypass {
			return nil, errors.New("config: LOCATION_BYPASS must not be true when APP_ENV=production")
		}
		if strings.TrimSpace(cfg.JWTPublicKey) == "" {
			return nil, errors.New("config: JWT_PUBLIC_KEY is required when APP_ENV=production")
		}
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// Location returns the site time zone. Falls back to UTC if SiteTimezone is invalid (Load rejects that case).
func (c *Config) Location() *time.Location {
	if c == nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StaffTTL parses JWTStaffTTL as a time.Duration. Returns 12h if unset or invalid.
func (c *Config) StaffTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTStaffTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// VerifierAuthEnabled reports whether staff tokens are required on the verification surface.
func (c *Config) VerifierAuthEnabled() bool {
	return c != nil && strings.TrimSpace(c.JWTPublicKey) != ""
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

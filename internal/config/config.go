// Package config provides configuration loading for projectd.
//
// Configuration is assembled from defaults, an optional YAML file and
// PROJECTD_-prefixed environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Event publisher drivers.
const (
	EventsNATS = "nats"
	EventsSQS  = "sqs"
	EventsLog  = "log"
)

// Config holds the complete projectd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	Events        EventsConfig        `koanf:"events"`
	Auth          AuthConfig          `koanf:"auth"`
	Secrets       SecretsConfig       `koanf:"secrets"`
	Operations    OperationsConfig    `koanf:"operations"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver   string         `koanf:"driver"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Postgres PostgresConfig `koanf:"postgres"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URI              Secret `koanf:"uri"`
	Database         string `koanf:"database"`
	CollectionPrefix string `koanf:"collection_prefix"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	DSN      Secret `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
}

// EventsConfig selects and configures the change notification channel.
type EventsConfig struct {
	Driver  string     `koanf:"driver"`
	Timeout Duration   `koanf:"timeout"`
	NATS    NATSConfig `koanf:"nats"`
	SQS     SQSConfig  `koanf:"sqs"`
}

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL       string `koanf:"url"`
	Subject   string `koanf:"subject"`
	JetStream bool   `koanf:"jetstream"`
	Stream    string `koanf:"stream"`
}

// SQSConfig configures the SQS publisher.
type SQSConfig struct {
	QueueURL string `koanf:"queue_url"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	Issuer    string          `koanf:"issuer"`
	Audience  string          `koanf:"audience"`
	Secret    Secret          `koanf:"secret"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig configures per-caller request limiting.
type RateLimitConfig struct {
	Enabled           bool    `koanf:"enabled"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
}

// SecretsConfig configures startup secret resolution from SSM Parameter
// Store. Empty paths are skipped.
type SecretsConfig struct {
	Enabled           bool   `koanf:"enabled"`
	Region            string `koanf:"region"`
	Endpoint          string `koanf:"endpoint"`
	JWTSecretPath     string `koanf:"jwt_secret_path"`
	MongoURIPath      string `koanf:"mongo_uri_path"`
	MongoDatabasePath string `koanf:"mongo_database_path"`
	PostgresDSNPath   string `koanf:"postgres_dsn_path"`
}

// OperationsConfig bounds store calls.
type OperationsConfig struct {
	Timeout Duration `koanf:"timeout"`
}

// LoggingConfig holds the daemon's logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	ServiceName    string  `koanf:"service_name"`
	TracingEnabled bool    `koanf:"tracing_enabled"`
	OTLPEndpoint   string  `koanf:"otlp_endpoint"`
	OTLPProtocol   string  `koanf:"otlp_protocol"`
	Insecure       bool    `koanf:"insecure"`
	SampleRate     float64 `koanf:"sample_rate"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Any timeout is not positive
//   - A driver is unknown or its required settings are missing
//   - No JWT secret is configured and secrets resolution is disabled
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server shutdown timeout must be positive"))
	}
	if c.Operations.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("operations timeout must be positive"))
	}
	if c.Events.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("events timeout must be positive"))
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StoreMongo:
		if !c.Store.Mongo.URI.IsSet() && !c.resolvesSecret(c.Secrets.MongoURIPath) {
			errs = append(errs, errors.New("store.mongo.uri is required for the mongo driver"))
		}
		if c.Store.Mongo.Database == "" && !c.resolvesSecret(c.Secrets.MongoDatabasePath) {
			errs = append(errs, errors.New("store.mongo.database is required for the mongo driver"))
		}
	case StorePostgres:
		if !c.Store.Postgres.DSN.IsSet() && !c.resolvesSecret(c.Secrets.PostgresDSNPath) {
			errs = append(errs, errors.New("store.postgres.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q (want memory, mongo or postgres)", c.Store.Driver))
	}

	switch c.Events.Driver {
	case EventsLog:
	case EventsNATS:
		if c.Events.NATS.URL == "" || c.Events.NATS.Subject == "" {
			errs = append(errs, errors.New("events.nats.url and events.nats.subject are required for the nats driver"))
		}
		if c.Events.NATS.JetStream && c.Events.NATS.Stream == "" {
			errs = append(errs, errors.New("events.nats.stream is required when jetstream is enabled"))
		}
	case EventsSQS:
		if c.Events.SQS.QueueURL == "" {
			errs = append(errs, errors.New("events.sqs.queue_url is required for the sqs driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown events driver %q (want nats, sqs or log)", c.Events.Driver))
	}

	if !c.Auth.Secret.IsSet() && !c.resolvesSecret(c.Secrets.JWTSecretPath) {
		errs = append(errs, errors.New("auth.secret is required (or secrets.jwt_secret_path with secrets enabled)"))
	}
	if c.Auth.RateLimit.Enabled && (c.Auth.RateLimit.RequestsPerSecond <= 0 || c.Auth.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("auth.rate_limit requires positive requests_per_second and burst"))
	}

	if c.Observability.TracingEnabled {
		if c.Observability.ServiceName == "" {
			errs = append(errs, errors.New("service name required when tracing is enabled"))
		}
		switch strings.ToLower(c.Observability.OTLPProtocol) {
		case "grpc", "http":
		default:
			errs = append(errs, fmt.Errorf("observability.otlp_protocol must be grpc or http, got %q", c.Observability.OTLPProtocol))
		}
		if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("observability.sample_rate must be within [0, 1], got %v", c.Observability.SampleRate))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) resolvesSecret(path string) bool {
	return c.Secrets.Enabled && path != ""
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if cfg.Store.Postgres.MaxConns == 0 {
		cfg.Store.Postgres.MaxConns = 10
	}

	if cfg.Events.Driver == "" {
		cfg.Events.Driver = EventsLog
	}
	if cfg.Events.Timeout == 0 {
		cfg.Events.Timeout = Duration(5 * time.Second)
	}
	if cfg.Events.NATS.Subject == "" {
		cfg.Events.NATS.Subject = "projectd.events"
	}
	if cfg.Events.NATS.Stream == "" {
		cfg.Events.NATS.Stream = "PROJECTD_EVENTS"
	}

	if cfg.Auth.RateLimit.RequestsPerSecond == 0 {
		cfg.Auth.RateLimit.RequestsPerSecond = 20
	}
	if cfg.Auth.RateLimit.Burst == 0 {
		cfg.Auth.RateLimit.Burst = 40
	}

	if cfg.Operations.Timeout == 0 {
		cfg.Operations.Timeout = Duration(5 * time.Second)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "projectd"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = "localhost:4317"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}

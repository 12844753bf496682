// Package config defines the configuration surface for the tripbase data
// access layer. Values are loaded once at process initialization from the
// environment (optionally seeded from a .env file) and are immutable
// thereafter. Which backend variant the provider factory constructs is
// selected by a single discriminant, DB_BACKEND.
package config

import (
	"time"

	"tripbase/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for connection strings and API keys so they never appear in logs.
type SecretString = types.SecretString

// Backend discriminant values for Config.Backend.
const (
	// BackendDirect selects the pooled binary-protocol PostgreSQL backend.
	BackendDirect = "direct"

	// BackendGateway selects the REST-gateway backend reached over HTTP.
	BackendGateway = "gateway"
)

// Config is the top-level configuration struct for the data access layer.
// It is populated once during process initialization and never modified.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Backend selects which provider variant the factory constructs.
	Backend string `envconfig:"DB_BACKEND" default:"direct" validate:"required,oneof=direct gateway"`

	Database DatabaseConfig
	Gateway  GatewayConfig
}

// DatabaseConfig holds direct-protocol connection and pool tuning parameters.
// URL is required when Backend is "direct"; the factory enforces this so a
// gateway-only deployment does not need a connection string in its
// environment.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL"`

	// Pool bounds and idle eviction.
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MaxConnIdleTime time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`

	// CommandTimeout bounds any single statement.
	CommandTimeout time.Duration `envconfig:"DB_COMMAND_TIMEOUT" default:"30s"`
	// AcquireTimeout fails fast when the pool is exhausted.
	AcquireTimeout time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// GatewayConfig holds REST-gateway connection parameters. URL and APIKey are
// required when Backend is "gateway"; the factory enforces this.
type GatewayConfig struct {
	URL        string        `envconfig:"GATEWAY_URL" validate:"omitempty,url"`
	APIKey     SecretString  `envconfig:"GATEWAY_API_KEY"`
	Timeout    time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
	MaxRetries int           `envconfig:"GATEWAY_MAX_RETRIES" default:"3" validate:"min=0,max=10"`
}

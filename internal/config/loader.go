// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load .env file via godotenv (non-fatal if absent).
//  2. Use envconfig to process struct tags and populate the Config struct.
//  3. Validate the struct using go-playground/validator.
//
// Per-variant required settings (DATABASE_URL vs GATEWAY_URL/GATEWAY_API_KEY)
// are deliberately not validated here: only the provider factory knows which
// variant is being constructed, and it reports the missing setting by name.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType classifies the loading phase in which a failure occurred.
type ConfigErrorType string

const (
	// ConfigErrorParse indicates envconfig could not populate the struct.
	ConfigErrorParse ConfigErrorType = "parse"
	// ConfigErrorValidation indicates the populated struct failed validation.
	ConfigErrorValidation ConfigErrorType = "validation"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load populates and validates a Config from the process environment. A
// .env file in the working directory is merged in first when present;
// real environment variables always win over dotenv values.
func Load() (*Config, error) {
	// godotenv returns an error when no .env file exists, which is the
	// normal case outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ConfigErrorParse,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &ConfigError{
			Type:    ConfigErrorValidation,
			Message: "configuration failed validation",
			Err:     err,
		}
	}

	return &cfg, nil
}

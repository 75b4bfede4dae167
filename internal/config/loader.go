// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadConfig loads and validates the service configuration from the
// environment. It returns a descriptive error for any missing or malformed
// value so that startup failures are diagnosable from the first log line.
func LoadConfig() (*Config, error) {
	// Enforce UTC for the whole process. subscribed_at timestamps and log
	// output must not depend on the host timezone.
	time.Local = time.UTC

	// Seed the environment from .env when present. Missing files are fine;
	// production injects real environment variables. Anything else
	// (unreadable, malformed) is a genuine failure.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validateConfig runs struct validation and converts the validator's field
// errors into a single readable message.
func validateConfig(cfg *Config) error {
	v := validator.New()
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("config validation setup: %w", invalid)
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			// Report the first failure; startup is all-or-nothing anyway.
			return fmt.Errorf("config field %s failed %q validation", fe.Namespace(), fe.Tag())
		}
	}

	return fmt.Errorf("config validation: %w", err)
}

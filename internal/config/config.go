// Package config defines the global configuration for the Fork & Fire
// newsletter service. Configuration is loaded once at process startup and is
// immutable thereafter, following 12-Factor principles: values come from the
// OS environment, optionally seeded from a .env file in local development.
//
// Any missing required value or invalid format fails the process immediately
// on startup.
package config

import (
	"time"

	"forkfire/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for credentials so they cannot leak through logs or config dumps.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"forkfire-newsletter"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Email    EmailConfig
	Dispatch DispatchConfig
	Admin    AdminConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// SiteURL is the public URL of the recipe site, used for links inside
	// rendered newsletters (no trailing slash).
	SiteURL string `envconfig:"SITE_URL" validate:"required,url"`
	// CORSAllowedOrigins lists origins permitted to call the public
	// subscribe/unsubscribe endpoints from the browser.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS regional configuration and observability settings.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// EndpointURL overrides the AWS endpoint for LocalStack. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`

	// MetricsNamespace is the CloudWatch namespace for dispatch metrics.
	// Metrics are disabled when EnableMetrics is false (local development).
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"ForkFire/Newsletter"`
	EnableMetrics    bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// EmailConfig holds the sender identity, SES settings, and the brand values
// injected into the newsletter template. Branding lives here rather than in
// the renderer so that rendering stays a pure function of its inputs.
type EmailConfig struct {
	FromAddress string `envconfig:"EMAIL_FROM_ADDRESS" default:"kitchen@forkandfire.com" validate:"email"`
	FromName    string `envconfig:"EMAIL_FROM_NAME" default:"Fork & Fire"`
	// SESConfigSet is the SES configuration set name for tracking. Optional.
	SESConfigSet string `envconfig:"SES_CONFIG_SET"`

	BrandName     string `envconfig:"BRAND_NAME" default:"Fork & Fire"`
	BrandTagline  string `envconfig:"BRAND_TAGLINE" default:"A collection of simple, delicious recipes."`
	SignatureName string `envconfig:"BRAND_SIGNATURE" default:"Sugata"`
	AccentColor   string `envconfig:"BRAND_ACCENT_COLOR" default:"#E86E45" validate:"hexcolor"`
}

// DispatchConfig tunes the bulk-send fan-out.
type DispatchConfig struct {
	// MaxConcurrentSends caps the number of in-flight provider calls during
	// one dispatch. The fan-out still covers every subscriber; this only
	// bounds parallelism.
	MaxConcurrentSends int `envconfig:"DISPATCH_MAX_CONCURRENT" default:"16" validate:"min=1"`
}

// AdminConfig gates the admin-only dispatch endpoint. The full site session
// auth lives in the account subsystem; this service accepts a static API key
// presented by the admin panel backend.
type AdminConfig struct {
	APIKey SecretString `envconfig:"ADMIN_API_KEY" validate:"required,min=16"`
}

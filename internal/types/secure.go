package types

import "log/slog"

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values (database URLs, the admin API key).
// It overrides String(), MarshalJSON(), and LogValue() so that secrets never
// leak through fmt functions, JSON output, or slog records.
//
// Use Unmask() to retrieve the raw value where it is genuinely needed, such
// as a database connection string.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue implements slog.LogValuer so structured logs redact the value
// even when the SecretString is passed as a raw attribute.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value of the secret. Usage should be
// limited to the point where the secret is actually consumed.
func (s SecretString) Unmask() string {
	return string(s)
}

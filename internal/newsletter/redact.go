package newsletter

import "strings"

// RedactEmail masks an email address for safe logging: the local part keeps
// its first character, the rest becomes asterisks ("j***@gmail.com").
// Strings without an "@" are masked entirely so malformed input cannot slip
// PII into logs.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	local, domain, found := strings.Cut(email, "@")
	if !found {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

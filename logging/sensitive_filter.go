package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces sensitive data in log output.
const RedactedPlaceholder = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{
	// bcrypt hashes, e.g. ADMIN_PASSWORD_HASH echoed in a config dump
	regexp.MustCompile(`\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}`),
	// Authorization header values
	regexp.MustCompile(`(?i)(basic\s+[A-Za-z0-9+/=]{8,})`),
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),
	// Credentials in query strings
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;&]{4,})`),
	regexp.MustCompile(`(?i)((?:token|secret|api_key)\s*[:=]\s*[^\s,;&]{8,})`),
}

// sensitiveFieldNames are substrings of field names whose values are
// always redacted.
var sensitiveFieldNames = []string{
	"PASSWORD",
	"AUTHORIZATION",
	"COOKIE",
	"SECRET",
	"TOKEN",
	"API_KEY",
}

// RedactSensitiveData replaces credential-looking substrings of value.
//
// Example:
//
//	RedactSensitiveData("GET /play/1?password=hunter22") // "GET /play/1?[REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}
	for _, pattern := range sensitivePatterns {
		value = pattern.ReplaceAllString(value, RedactedPlaceholder)
	}
	return value
}

// IsSensitiveField reports whether a field name marks its value as secret.
//
// Example:
//
//	IsSensitiveField("admin_password_hash") // true
//	IsSensitiveField("resource_id")         // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, name := range sensitiveFieldNames {
		if strings.Contains(upperName, name) {
			return true
		}
	}
	return false
}

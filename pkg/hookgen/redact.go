package hookgen

import "regexp"

var apiKeyPattern = regexp.MustCompile(`sk-[a-zA-Z0-9]+`)

// RedactSecrets replaces API-key-shaped substrings with [REDACTED].
func RedactSecrets(s string) string {
	return apiKeyPattern.ReplaceAllString(s, "[REDACTED]")
}

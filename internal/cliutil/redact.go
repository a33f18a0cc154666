package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

// sensitiveKeys are environment names whose values never reach a log line.
// Managed processes commonly receive them through env or envFromFile.
var sensitiveKeys = []string{
	"API_KEY",
	"API_TOKEN",
	"ACCESS_TOKEN",
	"REFRESH_TOKEN",
	"CLIENT_SECRET",
	"LICENSE_KEY",
	"SESSION_SECRET",
	"DB_PASSWORD",
	"DATABASE_URL",
}

var (
	templateVarPattern = regexp.MustCompile(`\$\{[^}]+\}`)
	secretKeyPattern   = regexp.MustCompile(`(?i)\b(` + quoteKeys(sensitiveKeys) + `)\b(\s*[:=]\s*)(["']?)([^"'\s]+)(["']?)`)
)

func quoteKeys(keys []string) string {
	escaped := make([]string, len(keys))
	for i, key := range keys {
		escaped[i] = regexp.QuoteMeta(key)
	}
	return strings.Join(escaped, "|")
}

// RedactSecrets masks ${VAR} references and values assigned to sensitive
// keys.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	redacted := templateVarPattern.ReplaceAllLiteralString(message, "${"+redactedPlaceholder+"}")
	return secretKeyPattern.ReplaceAllString(redacted, "$1$2$3"+redactedPlaceholder+"$5")
}

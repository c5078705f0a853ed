package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secret values in log output.
const RedactedValue = "[REDACTED]"

// sensitiveKeys name attributes that carry puzzle secrets or credentials.
// Any attribute whose key matches, or ends in one of these after an
// underscore, is masked by every logger built through Setup.
var sensitiveKeys = []string{
	"keyphrase",
	"solution",
	"viewing_key",
	"entropy",
	"signature",
	"permit",
	"passphrase",
	"authorization",
	"auth_token",
	"secret",
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	for _, s := range sensitiveKeys {
		if normalized == s || strings.HasSuffix(normalized, "_"+s) {
			return true
		}
	}
	return false
}

func redactAttr(attr slog.Attr) slog.Attr {
	if !IsSensitive(attr.Key) {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}

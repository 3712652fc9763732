package logging

import (
	"fmt"
	"strings"
)

// sensitiveKeys matches field names that must never reach a log sink in
// the clear.
var sensitiveKeys = []string{
	"secret", "password", "token", "authorization", "bearer", "jwt",
	"clientsecret", "apikey", "sharedsecret",
}

const redactedPlaceholder = "[REDACTED]"

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.ReplaceAll(key, "_", ""))
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// sanitize redacts sensitive fields in place and truncates oversized
// payload/stack fields to cfg.MaxPayloadSize, appending a
// "...[truncated N B]" marker when content is cut.
func sanitize(e *Entry, cfg Config) {
	if e.Fields != nil {
		redactMap(e.Fields)
	}

	if !cfg.IncludePayloads {
		delete(e.Fields, "requestBody")
		delete(e.Fields, "responseBody")
	} else {
		truncateField(e.Fields, "requestBody", cfg.MaxPayloadSize)
		truncateField(e.Fields, "responseBody", cfg.MaxPayloadSize)
	}

	if !cfg.IncludeStackTraces {
		e.Stack = ""
	} else if cfg.MaxPayloadSize > 0 && len(e.Stack) > cfg.MaxPayloadSize {
		e.Stack = truncate(e.Stack, cfg.MaxPayloadSize)
	}
}

func redactMap(fields map[string]any) {
	for k, v := range fields {
		if isSensitiveKey(k) {
			fields[k] = redactedPlaceholder
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			redactMap(nested)
		}
	}
}

func truncateField(fields map[string]any, key string, maxSize int) {
	if maxSize <= 0 {
		return
	}
	v, ok := fields[key]
	if !ok {
		return
	}
	s, ok := v.(string)
	if !ok || len(s) <= maxSize {
		return
	}
	fields[key] = truncate(s, maxSize)
}

func truncate(s string, maxSize int) string {
	if len(s) <= maxSize {
		return s
	}
	cut := s[:maxSize]
	return fmt.Sprintf("%s…[truncated %d B]", cut, len(s)-maxSize)
}

// Package config loads the env-driven configuration for the SCIM server:
// listen address, auth secrets, storage DSN, CORS origins, and the
// structured logger's defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("config validation failed with %d errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Config is the fully resolved process configuration.
type Config struct {
	Port         int
	BaseURL      string
	Env          string // "production", "development", etc, drives the pretty/JSON log default

	SharedSecret string
	JWTSecret    string
	OAuthClientID     string
	OAuthClientSecret string

	DatabaseURL string
	CORSOrigins []string

	LogLevel           string
	LogFormat          string
	LogCategoryLevels  map[string]string
	LogIncludePayloads bool
	LogIncludeStacks   bool
	LogMaxPayloadSize  int
}

// Load builds a Config from the process environment, applying defaults
// suited to local development.
func Load() *Config {
	cfg := &Config{
		Port:               envInt("PORT", 8880),
		BaseURL:            envString("BASE_URL", "http://localhost:8880"),
		Env:                envString("NODE_ENV", "development"),
		SharedSecret:       os.Getenv("SCIM_SHARED_SECRET"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		OAuthClientID:      os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret:  os.Getenv("OAUTH_CLIENT_SECRET"),
		DatabaseURL:        envString("DATABASE_URL", "file:scimserver.db?_pragma=busy_timeout(5000)"),
		CORSOrigins:        splitCSV(os.Getenv("CORS_ORIGINS")),
		LogLevel:           envString("LOG_LEVEL", "INFO"),
		LogFormat:          envString("LOG_FORMAT", defaultLogFormat()),
		LogCategoryLevels:  parseCategoryLevels(os.Getenv("LOG_CATEGORY_LEVELS")),
		LogIncludePayloads: envBool("LOG_INCLUDE_PAYLOADS", true),
		LogIncludeStacks:   envBool("LOG_INCLUDE_STACKS", true),
		LogMaxPayloadSize:  envInt("LOG_MAX_PAYLOAD_SIZE", 8*1024),
	}
	return cfg
}

func defaultLogFormat() string {
	if strings.EqualFold(os.Getenv("NODE_ENV"), "production") {
		return "json"
	}
	return "pretty"
}

// Validate checks the port range and a non-empty DATABASE_URL and, when
// Env is production, requires SCIM_SHARED_SECRET or JWT_SECRET. Outside
// production no secret is required; with none set, requests are not
// authenticated.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.Port < 1 || c.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "port",
			Message: fmt.Sprintf("port %d is out of range: must be between 1 and 65535", c.Port),
		})
	}

	if strings.EqualFold(c.Env, "production") {
		if c.SharedSecret == "" && c.JWTSecret == "" {
			errors = append(errors, ValidationError{
				Field:   "SCIM_SHARED_SECRET",
				Message: "SCIM_SHARED_SECRET or JWT_SECRET is required in production",
			})
		}
	}

	if c.DatabaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "DATABASE_URL",
			Message: "DATABASE_URL cannot be empty",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parseCategoryLevels parses "http=DEBUG,auth=WARN" into a map.
func parseCategoryLevels(v string) map[string]string {
	out := map[string]string{}
	if v == "" {
		return out
	}
	for _, pair := range strings.Split(v, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}

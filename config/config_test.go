package config

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "BASE_URL", "NODE_ENV", "SCIM_SHARED_SECRET", "JWT_SECRET",
		"OAUTH_CLIENT_ID", "OAUTH_CLIENT_SECRET", "DATABASE_URL", "CORS_ORIGINS",
		"LOG_LEVEL", "LOG_FORMAT", "LOG_CATEGORY_LEVELS", "LOG_INCLUDE_PAYLOADS",
		"LOG_INCLUDE_STACKS", "LOG_MAX_PAYLOAD_SIZE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	if cfg.Port != 8880 {
		t.Errorf("expected default port 8880, got %d", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:8880" {
		t.Errorf("unexpected default BaseURL: %q", cfg.BaseURL)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %q", cfg.Env)
	}
	if cfg.LogFormat != "pretty" {
		t.Errorf("expected pretty log format outside production, got %q", cfg.LogFormat)
	}
	if !cfg.LogIncludePayloads || !cfg.LogIncludeStacks {
		t.Error("expected payload/stack inclusion to default true")
	}
	if cfg.LogMaxPayloadSize != 8*1024 {
		t.Errorf("expected default max payload size 8192, got %d", cfg.LogMaxPayloadSize)
	}
}

func TestLoadDefaultsToJSONLogFormatInProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("NODE_ENV", "production")
	cfg := Load()
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format in production, got %q", cfg.LogFormat)
	}
}

func TestLoadParsesCORSOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	cfg := Load()
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example.com" {
		t.Fatalf("unexpected CORS origins: %+v", cfg.CORSOrigins)
	}
}

func TestLoadParsesCategoryLevels(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_CATEGORY_LEVELS", "http=DEBUG,auth=WARN")
	cfg := Load()
	if cfg.LogCategoryLevels["http"] != "DEBUG" || cfg.LogCategoryLevels["auth"] != "WARN" {
		t.Fatalf("unexpected category levels: %+v", cfg.LogCategoryLevels)
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := &Config{Port: 0, DatabaseURL: "file:test.db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	cfg := &Config{Port: 8880, Env: "production", DatabaseURL: "file:test.db"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing secret in production")
	}
}

func TestValidatePassesWithSharedSecretInProduction(t *testing.T) {
	cfg := &Config{Port: 8880, Env: "production", SharedSecret: "s3cr3t", DatabaseURL: "file:test.db"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateAllowsMissingSecretOutsideProduction(t *testing.T) {
	cfg := &Config{Port: 8880, Env: "development", DatabaseURL: "file:test.db"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config outside production, got %v", err)
	}
}

func TestValidateRejectsEmptyDatabaseURL(t *testing.T) {
	cfg := &Config{Port: 8880, DatabaseURL: ""}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty DATABASE_URL")
	}
}

func TestValidateReturnsMultipleErrors(t *testing.T) {
	cfg := &Config{Port: -1, Env: "production", DatabaseURL: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 3 {
		t.Fatalf("expected 3 validation errors, got %d: %v", len(verrs), verrs)
	}
}

func TestValidationErrorFormatting(t *testing.T) {
	err := &ValidationError{Field: "port", Message: "out of range"}
	want := "config validation error [port]: out of range"
	if err.Error() != want {
		t.Errorf("ValidationError.Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationErrorsFormatting(t *testing.T) {
	errs := ValidationErrors{
		ValidationError{Field: "field1", Message: "error 1"},
		ValidationError{Field: "field2", Message: "error 2"},
	}
	got := errs.Error()
	if got == "" {
		t.Fatal("expected non-empty error string")
	}
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "field1") || !strings.Contains(got, "field2") {
		t.Errorf("unexpected formatting: %q", got)
	}
}

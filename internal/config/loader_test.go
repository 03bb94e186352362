package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, legacy := range legacyEnv {
		t.Setenv(legacy, "")
	}
	for _, env := range os.Environ() {
		if name, _, ok := strings.Cut(env, "="); ok && strings.HasPrefix(name, EnvPrefix+"_") {
			t.Setenv(name, "")
		}
	}
}

func load(t *testing.T, file string) (Config, error) {
	t.Helper()
	v, err := NewViper(file)
	if err != nil {
		t.Fatalf("NewViper returned error: %v", err)
	}
	return Load(v)
}

func TestLoader_Environment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		const secret = "0123456789abcdef-secret"
		t.Setenv("TASKPLANNER_AUTH_SECRET_KEY", secret)

		cfg, err := load(t, "")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTP.Port != 8000 || cfg.HTTP.Addr() != ":8000" {
			t.Fatalf("expected default port 8000, got %d", cfg.HTTP.Port)
		}
		if cfg.Storage.Backend != BackendJSON || cfg.Storage.DataDir != "./data" {
			t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
		}
		if cfg.Auth.SecretKey != secret || cfg.Auth.SessionTTL != 24*time.Hour || cfg.Auth.HashScheme != "sha256" {
			t.Fatalf("unexpected auth config: %+v", cfg.Auth)
		}
		if cfg.Sheets.Enabled || cfg.Sheets.Range != "Sheet1!A:K" || cfg.Sheets.Timeout != 10*time.Second {
			t.Fatalf("unexpected sheets config: %+v", cfg.Sheets)
		}
		if cfg.Assistant.Model != "claude-sonnet-4-20250514" || cfg.Assistant.ChatMaxTokens != 1024 || cfg.Assistant.SearchMaxTokens != 2048 {
			t.Fatalf("unexpected assistant config: %+v", cfg.Assistant)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Fatalf("unexpected log config: %+v", cfg.Log)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := load(t, "")
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "missing required configuration: auth.secret_key"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("aggregates invalid values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TASKPLANNER_AUTH_SECRET_KEY", "short")
		t.Setenv("TASKPLANNER_HTTP_PORT", "eighty")
		t.Setenv("TASKPLANNER_AUTH_SESSION_TTL", "forever")
		t.Setenv("TASKPLANNER_STORAGE_BACKEND", "mongo")
		t.Setenv("TASKPLANNER_LOG_FORMAT", "xml")

		_, err := load(t, "")
		if err == nil {
			t.Fatalf("expected validation error")
		}
		for _, key := range []string{"http.port", "storage.backend", "auth.secret_key", "auth.session_ttl", "log.format"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in %q", key, err.Error())
			}
		}
	})

	t.Run("accepts legacy variable names", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SECRET_KEY", "legacy-secret-key-0123")
		t.Setenv("USE_JSON_STORAGE", "false")
		t.Setenv("DATABASE_URL", "postgres://planner@db/planner?sslmode=disable")
		t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://planner.example.com")
		t.Setenv("ANTHROPIC_API_KEY", "sk-test")

		cfg, err := load(t, "")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.Auth.SecretKey != "legacy-secret-key-0123" {
			t.Fatalf("legacy secret not read: %q", cfg.Auth.SecretKey)
		}
		if cfg.Storage.Backend != BackendPostgres {
			t.Fatalf("expected postgres backend, got %q", cfg.Storage.Backend)
		}
		if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://planner.example.com" {
			t.Fatalf("unexpected origins: %v", cfg.CORS.Origins)
		}
		if cfg.Assistant.APIKey != "sk-test" {
			t.Fatalf("legacy api key not read")
		}
	})

	t.Run("sheets require credentials once enabled", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("TASKPLANNER_AUTH_SECRET_KEY", "0123456789abcdef-secret")
		t.Setenv("GOOGLE_SHEET_ID", "sheet-123")

		_, err := load(t, "")
		if err == nil || !strings.Contains(err.Error(), "sheets.credentials_json|sheets.credentials_file") {
			t.Fatalf("expected missing credentials error, got %v", err)
		}

		t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
		cfg, err := load(t, "")
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if !cfg.Sheets.Enabled || cfg.Sheets.SpreadsheetID != "sheet-123" {
			t.Fatalf("expected sheets enabled: %+v", cfg.Sheets)
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "planner.yaml")
	content := `
http:
  port: 9090
storage:
  backend: sqlite
  dsn: file:/tmp/planner.db
auth:
  secret_key: file-secret-key-0123456
  hash_scheme: argon2id
  session_ttl: 2h
cors:
  origins:
    - http://localhost:5173
seed:
  file: ./seed.yaml
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKPLANNER_HTTP_PORT", "7070")

	cfg, err := load(t, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTP.Port != 7070 {
		t.Fatalf("environment should override file, got port %d", cfg.HTTP.Port)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.DSN != "file:/tmp/planner.db" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Auth.HashScheme != "argon2id" || cfg.Auth.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected auth config: %+v", cfg.Auth)
	}
	if len(cfg.CORS.Origins) != 1 || cfg.Seed.File != "./seed.yaml" {
		t.Fatalf("unexpected cors/seed config: %+v %+v", cfg.CORS, cfg.Seed)
	}
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	if _, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}

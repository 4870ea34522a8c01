package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"SCHEDULER_CONFIG_FILE",
	"SCHEDULER_HTTP_PORT",
	"SCHEDULER_SQLITE_DSN",
	"SCHEDULER_SEED_FILE",
	"SCHEDULER_TIMEZONE",
	"SCHEDULER_API_TOKEN_HASH",
	"SCHEDULER_RATE_LIMIT",
	"SCHEDULER_RATE_BURST",
	"SCHEDULER_PREVIEW_CACHE_TTL",
	"SCHEDULER_LOG_LEVEL",
}

// clearEnv blanks every key; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
	}
}

const testHash = "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_API_TOKEN_HASH", testHash)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:scheduler.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Location != time.UTC {
			t.Fatalf("expected UTC location, got %v", cfg.Location)
		}
		if cfg.RateLimit != 10 || cfg.RateBurst != 20 {
			t.Fatalf("unexpected rate defaults %v/%d", cfg.RateLimit, cfg.RateBurst)
		}
		if cfg.PreviewCacheTTL != 30*time.Second {
			t.Fatalf("unexpected preview TTL %v", cfg.PreviewCacheTTL)
		}
		if cfg.ParsedLogLevel != slog.LevelInfo {
			t.Fatalf("expected info level, got %v", cfg.ParsedLogLevel)
		}
		if cfg.APITokenHash != testHash {
			t.Fatalf("expected token hash to be loaded, got %q", cfg.APITokenHash)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnv(t)

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: SCHEDULER_API_TOKEN_HASH"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("applies overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_API_TOKEN_HASH", testHash)
		t.Setenv("SCHEDULER_HTTP_PORT", "9090")
		t.Setenv("SCHEDULER_TIMEZONE", "Asia/Tokyo")
		t.Setenv("SCHEDULER_RATE_LIMIT", "2.5")
		t.Setenv("SCHEDULER_RATE_BURST", "5")
		t.Setenv("SCHEDULER_PREVIEW_CACHE_TTL", "1m")
		t.Setenv("SCHEDULER_LOG_LEVEL", "debug")
		t.Setenv("SCHEDULER_SEED_FILE", "seed.yaml")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.Location.String() != "Asia/Tokyo" {
			t.Fatalf("expected Asia/Tokyo, got %v", cfg.Location)
		}
		if cfg.RateLimit != 2.5 || cfg.RateBurst != 5 {
			t.Fatalf("unexpected rate settings %v/%d", cfg.RateLimit, cfg.RateBurst)
		}
		if cfg.PreviewCacheTTL != time.Minute {
			t.Fatalf("expected 1m preview TTL, got %v", cfg.PreviewCacheTTL)
		}
		if cfg.ParsedLogLevel != slog.LevelDebug {
			t.Fatalf("expected debug level, got %v", cfg.ParsedLogLevel)
		}
		if cfg.SeedFile != "seed.yaml" {
			t.Fatalf("unexpected seed file %q", cfg.SeedFile)
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCHEDULER_API_TOKEN_HASH", testHash)
		t.Setenv("SCHEDULER_HTTP_PORT", "zero")
		t.Setenv("SCHEDULER_TIMEZONE", "Mars/Olympus")
		t.Setenv("SCHEDULER_LOG_LEVEL", "chatty")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		for _, key := range []string{"SCHEDULER_HTTP_PORT", "SCHEDULER_TIMEZONE", "SCHEDULER_LOG_LEVEL"} {
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("expected %s in error %q", key, err.Error())
			}
		}
	})
}

func TestLoader_ConfigFileOverlay(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "scheduler.yaml")
	content := "http_port: 7070\n" +
		"sqlite_dsn: file:school.db\n" +
		"api_token_hash: " + testHash + "\n" +
		"preview_cache_ttl: 45s\n" +
		"rate_limit: 3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("SCHEDULER_CONFIG_FILE", path)
	t.Setenv("SCHEDULER_SQLITE_DSN", "file:override.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("expected port from file, got %d", cfg.HTTPPort)
	}
	if cfg.SQLiteDSN != "file:override.db" {
		t.Fatalf("expected environment to override file, got %q", cfg.SQLiteDSN)
	}
	if cfg.PreviewCacheTTL != 45*time.Second {
		t.Fatalf("expected 45s preview TTL, got %v", cfg.PreviewCacheTTL)
	}
	if cfg.RateLimit != 3 || cfg.RateBurst != 20 {
		t.Fatalf("unexpected rate settings %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
}

func TestLoader_ConfigFileErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("SCHEDULER_API_TOKEN_HASH", testHash)

	t.Setenv("SCHEDULER_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("http_port: [1, 2"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("SCHEDULER_CONFIG_FILE", path)
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

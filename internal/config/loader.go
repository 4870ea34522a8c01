package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort        int            `yaml:"http_port"`
	SQLiteDSN       string         `yaml:"sqlite_dsn"`
	SeedFile        string         `yaml:"seed_file"`
	Timezone        string         `yaml:"timezone"`
	APITokenHash    string         `yaml:"api_token_hash"`
	RateLimit       float64        `yaml:"rate_limit"`
	RateBurst       int            `yaml:"rate_burst"`
	PreviewCacheTTL time.Duration  `yaml:"preview_cache_ttl"`
	LogLevel        string         `yaml:"log_level"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	Location        *time.Location `yaml:"-"`
	ParsedLogLevel  slog.Level     `yaml:"-"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:scheduler.db",
		Timezone:        "UTC",
		RateLimit:       10,
		RateBurst:       20,
		PreviewCacheTTL: 30 * time.Second,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load parses configuration values from the current process environment.
//
// When SCHEDULER_CONFIG_FILE names a YAML file it is decoded over the
// defaults first; environment variables override file values. Missing and
// invalid entries are collected and reported together.
func Load() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("SCHEDULER_CONFIG_FILE")); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if portValue := strings.TrimSpace(os.Getenv("SCHEDULER_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if seed := strings.TrimSpace(os.Getenv("SCHEDULER_SEED_FILE")); seed != "" {
		cfg.SeedFile = seed
	}
	if tz := strings.TrimSpace(os.Getenv("SCHEDULER_TIMEZONE")); tz != "" {
		cfg.Timezone = tz
	}
	if hash := strings.TrimSpace(os.Getenv("SCHEDULER_API_TOKEN_HASH")); hash != "" {
		cfg.APITokenHash = hash
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_RATE_LIMIT")); value != "" {
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil || limit < 0 {
			invalid = append(invalid, "SCHEDULER_RATE_LIMIT")
		} else {
			cfg.RateLimit = limit
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_RATE_BURST")); value != "" {
		burst, err := strconv.Atoi(value)
		if err != nil || burst < 0 {
			invalid = append(invalid, "SCHEDULER_RATE_BURST")
		} else {
			cfg.RateBurst = burst
		}
	}

	if value := strings.TrimSpace(os.Getenv("SCHEDULER_PREVIEW_CACHE_TTL")); value != "" {
		ttl, err := time.ParseDuration(value)
		if err != nil || ttl < 0 {
			invalid = append(invalid, "SCHEDULER_PREVIEW_CACHE_TTL")
		} else {
			cfg.PreviewCacheTTL = ttl
		}
	}

	if level := strings.TrimSpace(os.Getenv("SCHEDULER_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}

	if cfg.APITokenHash == "" {
		missing = append(missing, "SCHEDULER_API_TOKEN_HASH")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		invalid = append(invalid, "SCHEDULER_TIMEZONE")
	} else {
		cfg.Location = loc
	}

	if err := cfg.ParsedLogLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.HTTPPort <= 0 {
		return errors.New("config: http_port must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"ENV"`
	LogLevel               string        `mapstructure:"LOG_LEVEL"`
	DBDriver               string        `mapstructure:"DB_DRIVER"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMaxConns             int           `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int           `mapstructure:"DB_MIN_CONNS"`
	DBReadyTimeout         time.Duration `mapstructure:"DB_READY_TIMEOUT"`
	AttachmentsRoot        string        `mapstructure:"ATTACHMENTS_ROOT"`
	AttachmentsLegacyRoots []string      `mapstructure:"ATTACHMENTS_LEGACY_ROOTS"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
	CatalogCacheTTL        time.Duration `mapstructure:"CATALOG_CACHE_TTL"`
	MetricsEnabled         bool          `mapstructure:"METRICS_ENABLED"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8710")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "./data/dental.db")
	v.SetDefault("DB_MAX_CONNS", 4)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DB_READY_TIMEOUT", "10s")
	v.SetDefault("ATTACHMENTS_ROOT", "./data/attachments")
	v.SetDefault("CORS_ORIGINS", "http://localhost:1420")
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("DB_DRIVER")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DB_READY_TIMEOUT")
	v.BindEnv("ATTACHMENTS_ROOT")
	v.BindEnv("ATTACHMENTS_LEGACY_ROOTS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("CATALOG_CACHE_TTL")
	v.BindEnv("METRICS_ENABLED")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.AttachmentsLegacyRoots = splitList(cfg.AttachmentsLegacyRoots, v.GetString("ATTACHMENTS_LEGACY_ROOTS"))

	return cfg, nil
}

// splitList normalises a comma separated setting that viper may deliver
// either as a single element or not at all.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 1 && strings.Contains(parsed[0], ",") {
		raw = parsed[0]
		parsed = nil
	}
	if parsed == nil && raw != "" {
		parsed = strings.Split(raw, ",")
	}
	out := parsed[:0:0]
	for _, s := range parsed {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration can be used to start the server.
func (c *Config) Validate() error {
	if c.DBDriver != "sqlite" && c.DBDriver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be \"sqlite\" or \"postgres\", got %q", c.DBDriver)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS and DB_MIN_CONNS must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.DBReadyTimeout <= 0 {
		return fmt.Errorf("DB_READY_TIMEOUT must be positive")
	}
	if c.AttachmentsRoot == "" {
		return fmt.Errorf("ATTACHMENTS_ROOT is required")
	}
	root := filepath.Clean(c.AttachmentsRoot)
	for _, legacy := range c.AttachmentsLegacyRoots {
		if filepath.Clean(legacy) == root {
			return fmt.Errorf("legacy attachments root %q duplicates ATTACHMENTS_ROOT", legacy)
		}
	}
	return nil
}

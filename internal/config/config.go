package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds process configuration shared by the server and the operator binaries.
type Config struct {
	DatabaseURL      string
	ServerPort       string
	LogLevel         string
	LogFormat        string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostingLockTTL   time.Duration
	TxTimeout        time.Duration
	AllowedOrigins   string
	RunMigrations    bool
	RequestBodyLimit int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("POSTING_LOCK_TTL", "30s")
	v.SetDefault("TX_TIMEOUT", "15s")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("REQUEST_BODY_LIMIT", 1<<20)
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		DatabaseURL:      v.GetString("DATABASE_URL"),
		ServerPort:       v.GetString("SERVER_PORT"),
		LogLevel:         strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat:        strings.ToLower(v.GetString("LOG_FORMAT")),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		RedisDB:          v.GetInt("REDIS_DB"),
		AllowedOrigins:   v.GetString("ALLOWED_ORIGINS"),
		RunMigrations:    v.GetBool("RUN_MIGRATIONS"),
		RequestBodyLimit: v.GetInt64("REQUEST_BODY_LIMIT"),
	}

	var err error
	if cfg.PostingLockTTL, err = parseDuration(v, "POSTING_LOCK_TTL"); err != nil {
		return nil, err
	}
	if cfg.TxTimeout, err = parseDuration(v, "TX_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.PostingLockTTL <= 0 {
		return nil, fmt.Errorf("POSTING_LOCK_TTL must be positive, got %s", cfg.PostingLockTTL)
	}
	if cfg.RequestBodyLimit <= 0 {
		return nil, fmt.Errorf("REQUEST_BODY_LIMIT must be positive, got %d", cfg.RequestBodyLimit)
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s (%q): %w", key, raw, err)
	}
	return d, nil
}

// RedisEnabled reports whether the distributed posting lock should be used.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

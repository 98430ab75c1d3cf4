package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PostgresConfig describes the token database. Host may carry a full
// postgres:// DSN, in which case the remaining fields are ignored.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a token database is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// Config is the service configuration loaded from YAML.
type Config struct {
	Server struct {
		Host           string `yaml:"host"`
		Port           string `yaml:"port"`
		Prefork        bool   `yaml:"prefork"`
		BodyLimitBytes int    `yaml:"body_limit_bytes"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Converter struct {
		Binary         string   `yaml:"binary"`
		TimeoutSecs    int      `yaml:"timeout_secs"`
		MaxTimeoutSecs int      `yaml:"max_timeout_secs"`
		MaxConcurrent  int      `yaml:"max_concurrent"`
		WorkDir        string   `yaml:"work_dir"`
		ExtraArgs      []string `yaml:"extra_args"`
	} `yaml:"converter"`

	Fetch struct {
		TimeoutSecs int    `yaml:"timeout_secs"`
		MaxBytes    int64  `yaml:"max_bytes"`
		UserAgent   string `yaml:"user_agent"`
	} `yaml:"fetch"`

	Limits struct {
		MaxPDFBytes  int `yaml:"max_pdf_bytes"`
		MaxHTMLBytes int `yaml:"max_html_bytes"`
	} `yaml:"limits"`

	Cache struct {
		RedisHost          string        `yaml:"redis_host"`
		RateLimitDB        int           `yaml:"rate_limit_db"`
		ResultCacheDB      int           `yaml:"result_cache_db"`
		ResultCacheEnabled bool          `yaml:"result_cache_enabled"`
		ResultCacheTTL     time.Duration `yaml:"result_cache_ttl"`
	} `yaml:"cache"`

	Auth struct {
		Postgres       PostgresConfig `yaml:"postgres"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
	} `yaml:"auth"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		UserLimit         int           `yaml:"user_limit"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`
}

// ConverterTimeout is the default wall-clock budget for one conversion.
func (c Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.TimeoutSecs) * time.Second
}

// FetchTimeout bounds the download of a pdf_url.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSecs) * time.Second
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"
	cfg.Server.BodyLimitBytes = 64 * 1024 * 1024

	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14

	cfg.Converter.Binary = "pdf2htmlEX"
	cfg.Converter.TimeoutSecs = 180
	cfg.Converter.MaxTimeoutSecs = 600
	cfg.Converter.MaxConcurrent = 4

	cfg.Fetch.TimeoutSecs = 60
	cfg.Fetch.MaxBytes = 40 * 1024 * 1024
	cfg.Fetch.UserAgent = "pdf2html/1.0"

	cfg.Limits.MaxPDFBytes = 40 * 1024 * 1024
	cfg.Limits.MaxHTMLBytes = 200 * 1024 * 1024

	cfg.Cache.RateLimitDB = 0
	cfg.Cache.ResultCacheDB = 1
	cfg.Cache.ResultCacheTTL = time.Hour

	cfg.Auth.ReloadInterval = time.Minute

	cfg.RateLimiter.Interval = time.Minute
	return cfg
}

// Load reads the file named by CONFIG_PATH (default config.yaml).
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads path on top of Default. A missing file yields the defaults;
// an unreadable or invalid one panics.
func LoadFrom(path string) Config {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PDF2HTMLEX_BIN"); v != "" {
		cfg.Converter.Binary = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	if c.Converter.Binary == "" {
		return errors.New("converter.binary is empty")
	}
	if c.Converter.TimeoutSecs <= 0 {
		return errors.New("converter.timeout_secs must be positive")
	}
	if c.Converter.MaxTimeoutSecs < c.Converter.TimeoutSecs {
		return errors.New("converter.max_timeout_secs must be >= converter.timeout_secs")
	}
	if c.Converter.MaxConcurrent < 0 {
		return errors.New("converter.max_concurrent must not be negative")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		return errors.New("fetch.timeout_secs must be positive")
	}
	if c.Limits.MaxPDFBytes <= 0 {
		return errors.New("limits.max_pdf_bytes must be positive")
	}
	if c.Limits.MaxHTMLBytes <= 0 {
		return errors.New("limits.max_html_bytes must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return errors.New("rate_limiter.user_limit must not be negative")
	}
	if c.RateLimiter.Interval <= 0 {
		return errors.New("rate_limiter.interval must be positive")
	}
	if c.Auth.Postgres.Enabled() && c.Auth.ReloadInterval <= 0 {
		return errors.New("auth.reload_interval must be positive")
	}
	return nil
}

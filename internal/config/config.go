// Package config handles configuration loading for PVBench.
// It supports YAML config files with environment variable overrides and
// validates the result at startup: bad configuration is fatal before any
// work begins, never discovered mid-batch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the single configuration object handed to every component at
// construction time. Nothing in the core reads configuration ad hoc.
type Config struct {
	Providers  ProvidersConfig  `mapstructure:"providers"  yaml:"providers"`
	Cache      CacheConfig      `mapstructure:"cache"      yaml:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" yaml:"rate_limit"`
	Batch      BatchConfig      `mapstructure:"batch"      yaml:"batch"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	API        APIConfig        `mapstructure:"api"        yaml:"api"`
}

// ProvidersConfig holds per-provider credentials and the fallback order.
type ProvidersConfig struct {
	// Order lists provider names in priority order.
	Order []string    `mapstructure:"order" yaml:"order" validate:"min=1,dive,oneof=nsrdb pvgis"`
	NSRDB NSRDBConfig `mapstructure:"nsrdb" yaml:"nsrdb"`
	PVGIS PVGISConfig `mapstructure:"pvgis" yaml:"pvgis"`
}

// NSRDBConfig holds NREL NSRDB credentials and endpoint settings.
type NSRDBConfig struct {
	APIKey  string `mapstructure:"api_key"  yaml:"api_key"`
	Email   string `mapstructure:"email"    yaml:"email" validate:"omitempty,email"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
}

// PVGISConfig holds PVGIS endpoint settings (no credentials required).
type PVGISConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
}

// CacheConfig holds weather cache settings.
type CacheConfig struct {
	// Backend selects the blob store: "fs" or "minio".
	Backend    string      `mapstructure:"backend"     yaml:"backend" validate:"oneof=fs minio"`
	Dir        string      `mapstructure:"dir"         yaml:"dir"`
	TTLDays    int         `mapstructure:"ttl_days"    yaml:"ttl_days" validate:"min=1"`
	PurgeHours int         `mapstructure:"purge_hours" yaml:"purge_hours" validate:"min=1"` // expired-entry sweep interval in serve mode
	MinIO      MinIOConfig `mapstructure:"minio"       yaml:"minio"`
}

// TTL returns the cache expiry as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// MinIOConfig holds object-store connection settings.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"   yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Bucket    string `mapstructure:"bucket"     yaml:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"    yaml:"use_ssl"`
}

// RateLimitConfig holds the retry/backoff schedule and per-provider pacing.
type RateLimitConfig struct {
	MinIntervalMS     int     `mapstructure:"min_interval_ms"    yaml:"min_interval_ms" validate:"min=0"`
	MaxRetries        int     `mapstructure:"max_retries"        yaml:"max_retries" validate:"min=0,max=10"`
	BaseDelayMS       int     `mapstructure:"base_delay_ms"      yaml:"base_delay_ms" validate:"min=1"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier" validate:"gte=1"`
	TimeoutSec        int     `mapstructure:"timeout_sec"        yaml:"timeout_sec" validate:"min=1"`
}

// MinInterval returns the minimum inter-call delay per provider channel.
func (c RateLimitConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// BaseDelay returns the first-retry backoff delay.
func (c RateLimitConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMS) * time.Millisecond
}

// Timeout returns the per-network-call timeout.
func (c RateLimitConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// BatchConfig holds batch fetch settings.
type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"min=1,max=64"`
}

// ValidationConfig holds validation engine settings.
type ValidationConfig struct {
	MinSamples  int      `mapstructure:"min_samples" yaml:"min_samples" validate:"min=1"`
	Resolutions []string `mapstructure:"resolutions" yaml:"resolutions" validate:"min=1,dive,oneof=hourly daily monthly annual"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.pvbench/config.yaml (home directory)
//  3. /etc/pvbench/config.yaml (system)
//
// Environment variables override config file values.
// Format: PVBENCH_<SECTION>_<KEY>, e.g., PVBENCH_PROVIDERS_NSRDB_API_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".pvbench"))
	v.AddConfigPath("/etc/pvbench")

	v.SetEnvPrefix("PVBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars.
	}

	return finishLoad(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("PVBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return finishLoad(v)
}

func finishLoad(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks parameter ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Cache.Backend == "minio" {
		m := c.Cache.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return fmt.Errorf("invalid configuration: cache backend minio requires endpoint, access_key, secret_key, bucket")
		}
	}
	return nil
}

// setDefaults sets sensible defaults for all config values. They mirror
// the original deployment: 30-day cache, 1 s pacing, 3 retries, 30 s
// per-call timeout.
func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.order", []string{"nsrdb", "pvgis"})

	v.SetDefault("cache.backend", "fs")
	v.SetDefault("cache.dir", filepath.Join(homeDir(), ".pvbench", "cache"))
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("cache.purge_hours", 6)

	v.SetDefault("rate_limit.min_interval_ms", 1000)
	v.SetDefault("rate_limit.max_retries", 3)
	v.SetDefault("rate_limit.base_delay_ms", 1000)
	v.SetDefault("rate_limit.backoff_multiplier", 2.0)
	v.SetDefault("rate_limit.timeout_sec", 30)

	v.SetDefault("batch.concurrency", 4)

	v.SetDefault("validation.min_samples", 12)
	v.SetDefault("validation.resolutions", []string{"daily", "monthly", "annual"})

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
}

// overrideFromEnv explicitly reads sensitive keys from environment
// variables, including the legacy names the original deployment used.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("PVBENCH_PROVIDERS_NSRDB_API_KEY"); key != "" {
		cfg.Providers.NSRDB.APIKey = key
	}
	if key := os.Getenv("NREL_API_KEY"); key != "" && cfg.Providers.NSRDB.APIKey == "" {
		cfg.Providers.NSRDB.APIKey = key
	}
	if email := os.Getenv("PVBENCH_PROVIDERS_NSRDB_EMAIL"); email != "" {
		cfg.Providers.NSRDB.Email = email
	}
	if email := os.Getenv("NREL_USER_EMAIL"); email != "" && cfg.Providers.NSRDB.Email == "" {
		cfg.Providers.NSRDB.Email = email
	}
	if key := os.Getenv("PVBENCH_CACHE_MINIO_SECRET_KEY"); key != "" {
		cfg.Cache.MinIO.SecretKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	ImagesBackendDisk = "disk"
	ImagesBackendS3   = "s3"
)

type Config struct {
	Environment string `toml:"-"`

	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`
	PublicBaseURL         string `toml:"public_base_url"`
	// CorsAllowedOrigins lists the browser origins of the admin and public frontends
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// postgres
	PostgresHost     string `toml:"postgres_host"`
	PostgresPort     string `toml:"postgres_port"`
	PostgresDBName   string `toml:"postgres_db_name"`
	PostgresUser     string `toml:"postgres_user"`
	PostgresMaxConns int32  `toml:"postgres_max_conns"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	// admin session
	LoginRateLimitAllowedPerMin int           `toml:"login_rate_limit_allowed_per_min"`
	SessionTTL                  time.Duration `toml:"session_ttl"`

	// posts
	PostCacheSizeMB     int           `toml:"post_cache_size_mb"`
	PostCacheTTL        time.Duration `toml:"post_cache_ttl"`
	SlugConflictRetries int           `toml:"slug_conflict_retries"`

	// images
	ImagesBackend   string `toml:"images_backend"`
	ImagesRootPath  string `toml:"images_root_path"`
	ImagesMaxBytes  int64  `toml:"images_max_bytes"`
	S3Bucket        string `toml:"s3_bucket"`
	S3Region        string `toml:"s3_region"`
	S3Endpoint      string `toml:"s3_endpoint"`
	S3PublicBaseURL string `toml:"s3_public_base_url"`
	S3UsePathStyle  bool   `toml:"s3_use_path_style"`

	Secrets Secrets `toml:"-"`
}

// Secrets never live in the TOML file.
type Secrets struct {
	AdminUsername     string `env:"BLOG_ADMIN_USERNAME"`
	AdminPasswordHash string `env:"BLOG_ADMIN_PASSWORD_HASH"`
	PostgresPassword  string `env:"BLOG_POSTGRES_PASS"`
	RedisPassword     string `env:"BLOG_REDIS_PASS"`
	SentryDSN         string `env:"SENTRY_DSN"`
	HoneycombEnabled  bool   `env:"HONEYCOMB_ENABLED, default=false"`
	HoneycombAPIKey   string `env:"HONEYCOMB_API_KEY"`
	S3AccessKeyID     string `env:"BLOG_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"BLOG_S3_SECRET_ACCESS_KEY"`
}

type Toml struct {
	Development *Config
	Production  *Config
	DockerDev   *Config `toml:"dockerdev"`
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
	case "prod", "production":
		cfg = t.Production
	case "ddev", "dockerdev":
		cfg = t.DockerDev
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}
	if cfg == nil {
		return nil, fmt.Errorf("no config for env: %s", env)
	}
	return cfg, nil
}

// Load reads the env table of the TOML file at path, fills the defaults, and reads the
// secrets from the process environment. A .env file next to the binary is loaded first, if any.
func Load(ctx context.Context, env, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(ctx, env, path, envconfig.OsLookuper())
}

func load(ctx context.Context, env, path string, lookuper envconfig.Lookuper) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}
	cfg.Environment = strings.ToLower(env)

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg.Secrets,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process env secrets: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.PostgresPort == "" {
		c.PostgresPort = "5432"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.LoginRateLimitAllowedPerMin <= 0 {
		c.LoginRateLimitAllowedPerMin = 15
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	if c.PostCacheSizeMB <= 0 {
		c.PostCacheSizeMB = 32
	}
	if c.PostCacheTTL <= 0 {
		c.PostCacheTTL = 5 * time.Minute
	}
	if c.SlugConflictRetries <= 0 {
		c.SlugConflictRetries = 5
	}
	if c.ImagesBackend == "" {
		c.ImagesBackend = ImagesBackendDisk
	}
	if c.ImagesMaxBytes <= 0 {
		c.ImagesMaxBytes = 5 << 20
	}
}

func (c *Config) validate() error {
	switch c.ImagesBackend {
	case ImagesBackendDisk:
		if c.ImagesRootPath == "" {
			return errors.New("images_root_path is required for the disk images backend")
		}
	case ImagesBackendS3:
		if c.S3Bucket == "" {
			return errors.New("s3_bucket is required for the s3 images backend")
		}
	default:
		return fmt.Errorf("unknown images backend: %s", c.ImagesBackend)
	}
	if c.PostgresDBName == "" {
		return errors.New("postgres_db_name is required")
	}
	return nil
}

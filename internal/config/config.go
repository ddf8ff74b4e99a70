package config

import (
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the membership admin tooling.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Membership MembershipConfig `yaml:"membership"`
	Geography  GeographyConfig  `yaml:"geography"`
	API        APIConfig        `yaml:"api"`
	Reports    ReportsConfig    `yaml:"reports"`
	Lock       LockConfig       `yaml:"lock"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// DatabaseConfig holds the membership database connection settings.
// Driver is "postgres" for the current schema or "mysql" for the legacy one.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	ConnectTimeoutSeconds  int    `yaml:"connect_timeout_seconds"`
}

// ConnMaxLifetime returns the configured lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// ConnectTimeout returns the ping timeout as a duration
func (c DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// Enabled reports whether a Redis URL is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// MembershipConfig holds the status rule and reconcile settings.
type MembershipConfig struct {
	GraceDays    int    `yaml:"grace_days"`
	BatchSize    int    `yaml:"batch_size"`
	BatchPauseMS int    `yaml:"batch_pause_ms"`
	Timezone     string `yaml:"timezone"`
	SampleLimit  int    `yaml:"sample_limit"`
}

// BatchPause returns the pause between reconcile batches
func (c MembershipConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseMS) * time.Millisecond
}

// Location loads the configured timezone, falling back to UTC.
func (c MembershipConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GeographyConfig holds resolver settings.
type GeographyConfig struct {
	CacheTTLMinutes int      `yaml:"cache_ttl_minutes"`
	SampleWards     []string `yaml:"sample_wards"`
	AuditSamples    int      `yaml:"audit_samples"`
}

// CacheTTL returns the resolver cache TTL as a duration
func (c GeographyConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// APIConfig holds the membership API settings. The server checks Token on
// every /api/v1 request; the smoke tester sends it.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	SampleMemberID int64  `yaml:"sample_member_id"`
	SampleWardCode string `yaml:"sample_ward_code"`
}

// Timeout returns the configured timeout as a duration
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ReportsConfig holds S3 archive settings for investigation reports.
type ReportsConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role on ECS)
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
}

// Enabled reports whether reports should be archived.
func (c ReportsConfig) Enabled() bool { return c.S3Bucket != "" }

// GetAWSProfile returns the AWS profile, with environment variable override
func (c ReportsConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// LockConfig controls the reconcile run lock.
type LockConfig struct {
	Key        string `yaml:"key"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// TTL returns the lock TTL as a duration
func (c LockConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for commands
// run without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 5
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Database.ConnectTimeoutSeconds == 0 {
		cfg.Database.ConnectTimeoutSeconds = 10
	}
	if cfg.Membership.GraceDays == 0 {
		cfg.Membership.GraceDays = 90
	}
	if cfg.Membership.BatchSize == 0 {
		cfg.Membership.BatchSize = 1000
	}
	if cfg.Membership.BatchPauseMS == 0 {
		cfg.Membership.BatchPauseMS = 100
	}
	if cfg.Membership.Timezone == "" {
		cfg.Membership.Timezone = "Africa/Johannesburg"
	}
	if cfg.Membership.SampleLimit == 0 {
		cfg.Membership.SampleLimit = 20
	}
	if cfg.Geography.CacheTTLMinutes == 0 {
		cfg.Geography.CacheTTLMinutes = 360
	}
	if cfg.Geography.AuditSamples == 0 {
		cfg.Geography.AuditSamples = 10
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:8080"
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = 30
	}
	if cfg.API.MaxRetries == 0 {
		cfg.API.MaxRetries = 3
	}
	if cfg.Reports.S3Region == "" {
		cfg.Reports.S3Region = "af-south-1"
	}
	if cfg.Reports.S3Prefix == "" {
		cfg.Reports.S3Prefix = "investigations"
	}
	if cfg.Lock.Key == "" {
		cfg.Lock.Key = "fix-membership-status"
	}
	if cfg.Lock.TTLMinutes == 0 {
		cfg.Lock.TTLMinutes = 60
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// An empty path skips the YAML file and starts from defaults.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MEMBERSHIP_GRACE_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Membership.GraceDays = days
		}
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("REPORTS_S3_BUCKET"); v != "" {
		cfg.Reports.S3Bucket = v
	}
	if v := os.Getenv("REPORTS_S3_REGION"); v != "" {
		cfg.Reports.S3Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Reports.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Reports.SecretKey = v
	}

	return cfg, nil
}

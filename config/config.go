package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Admission  AdmissionConfig  `yaml:"admission"`
	Permit     PermitConfig     `yaml:"permit"`
	Auth       AuthConfig       `yaml:"auth"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Expiry     ExpiryConfig     `yaml:"expiry"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size      int `yaml:"size"`
	QueueSize int `yaml:"queue_size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
	EnableRangeIndex       bool   `yaml:"enable_range_index"`
}

// AdmissionConfig tunes the approval path.
type AdmissionConfig struct {
	ScopeToSpace bool `yaml:"scope_to_space"`
	MaxAttempts  int  `yaml:"max_attempts"`
}

// PermitConfig holds the credential signing settings.
type PermitConfig struct {
	SigningSecret      string        `yaml:"signing_secret"`
	CredentialTTLHours int           `yaml:"credential_ttl_hours"`
	CredentialTTL      time.Duration `yaml:"-"`
}

// AuthConfig holds the secret used to validate operator session tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ExpiryConfig controls the permit expiry sweeper.
type ExpiryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Admission.MaxAttempts <= 0 {
		cfg.Admission.MaxAttempts = 3
	}

	if cfg.Permit.CredentialTTLHours <= 0 {
		cfg.Permit.CredentialTTLHours = 24 * 365
	}
	cfg.Permit.CredentialTTL = time.Duration(cfg.Permit.CredentialTTLHours) * time.Hour
	if cfg.Permit.SigningSecret == "" {
		log.Printf("permit.signing_secret is not set; falling back to auth.jwt_secret")
		cfg.Permit.SigningSecret = cfg.Auth.JWTSecret
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.QueueSize <= 0 {
		cfg.WorkerPool.QueueSize = 64
	}

	if cfg.Expiry.IntervalSeconds <= 0 {
		cfg.Expiry.IntervalSeconds = 300
	}
	cfg.Expiry.Interval = time.Duration(cfg.Expiry.IntervalSeconds) * time.Second
}

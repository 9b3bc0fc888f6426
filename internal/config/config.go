package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database" envconfig:"DB"`
	Redis    RedisConfig    `yaml:"redis"`
	AWS      AWSConfig      `yaml:"aws"`
	APNS     APNSConfig     `yaml:"apns"`
	JWT      JWTConfig      `yaml:"jwt"`
	Session  SessionConfig  `yaml:"session"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig enables the shared session-change bus. Empty Addr keeps it in-process.
type RedisConfig struct {
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
}

// AWSConfig holds S3 settings for memory uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket" split_words:"true"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
	Endpoint  string `yaml:"endpoint"`
}

// APNSConfig holds push notification settings. Empty CertFile disables pushes.
type APNSConfig struct {
	CertFile     string `yaml:"cert_file" split_words:"true"`
	CertPassword string `yaml:"cert_password" split_words:"true"`
	Topic        string `yaml:"topic"`
	Production   bool   `yaml:"production"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// AccessTTL is the lifetime of backend access tokens.
	AccessTTL time.Duration `yaml:"access_ttl" split_words:"true"`
}

// SessionConfig controls client session behaviour
type SessionConfig struct {
	ForceLogoutOnLaunch *bool         `yaml:"force_logout_on_launch" split_words:"true"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" split_words:"true"`
	AllowAnonymous      *bool         `yaml:"allow_anonymous" split_words:"true"`
}

// SyncConfig controls the remote write outbox
type SyncConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MaxInterval time.Duration `yaml:"max_interval" split_words:"true"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file, then applies TNEPIC_<SECTION>_<KEY>
// environment overrides (TNEPIC_DB_HOST, TNEPIC_AWS_S3_BUCKET, ...).
// A missing file is not an error; environment and defaults still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process("TNEPIC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate fills defaults and rejects unusable settings
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = "tnepic-auth-events"
	}
	if c.AWS.Region == "" {
		c.AWS.Region = "us-east-1"
	}
	if c.Session.ForceLogoutOnLaunch == nil {
		force := true
		c.Session.ForceLogoutOnLaunch = &force
	}
	if c.Session.AllowAnonymous == nil {
		allow := true
		c.Session.AllowAnonymous = &allow
	}
	if c.JWT.AccessTTL <= 0 {
		c.JWT.AccessTTL = 7 * 24 * time.Hour
	}
	if c.Session.IdleTimeout <= 0 {
		c.Session.IdleTimeout = 24 * time.Hour
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = 2 * time.Second
	}
	if c.Sync.MaxInterval <= 0 {
		c.Sync.MaxInterval = 5 * time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("database.host and database.dbname are required")
	}
	return nil
}

// ForceLogout reports the launch policy
func (c *SessionConfig) ForceLogout() bool {
	return c.ForceLogoutOnLaunch == nil || *c.ForceLogoutOnLaunch
}

// AnonymousSignIn reports whether guests get a backend session
func (c *SessionConfig) AnonymousSignIn() bool {
	return c.AllowAnonymous == nil || *c.AllowAnonymous
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

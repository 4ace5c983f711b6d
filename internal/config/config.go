package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Guardian  GuardianConfig `mapstructure:"guardian"`
	Storage   StorageConfig  `mapstructure:"storage"`
	JWTSecret string         `mapstructure:"jwt_secret"`
	Debug     bool           `mapstructure:"debug"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

// GuardianConfig configures the external Guardian Service client.
// Enabled is decided once at startup; the client never re-reads it.
type GuardianConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// StorageConfig configures the external Storage Service client.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	URL             string `mapstructure:"url"`
	TimeoutSec      int    `mapstructure:"timeout_sec"`
	MaxAttachmentMB int    `mapstructure:"max_attachment_mb"`
}

func (g GuardianConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSec) * time.Second
}

func (s StorageConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// MaxAttachmentBytes returns the upload size limit in bytes.
func (s StorageConfig) MaxAttachmentBytes() int64 {
	return int64(s.MaxAttachmentMB) << 20
}

// ConnString returns the PostgreSQL connection string.
func (d DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("../..")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "identity")
	viper.SetDefault("database.name", "identity")
	viper.SetDefault("database.pool_size", 10)
	viper.SetDefault("jwt_secret", "changeme-secret")
	viper.SetDefault("debug", false)
	viper.SetDefault("guardian.enabled", true)
	viper.SetDefault("guardian.url", "http://guardian-service:5000")
	viper.SetDefault("guardian.timeout_sec", 5)
	viper.SetDefault("storage.enabled", true)
	viper.SetDefault("storage.url", "http://storage-service:5000")
	viper.SetDefault("storage.timeout_sec", 30)
	viper.SetDefault("storage.max_attachment_mb", 5)

	// Environment toggles take precedence over file values.
	viper.AutomaticEnv()
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("guardian.enabled", "GUARDIAN_ENABLED")
	_ = viper.BindEnv("guardian.url", "GUARDIAN_SERVICE_URL")
	_ = viper.BindEnv("guardian.timeout_sec", "GUARDIAN_SERVICE_TIMEOUT")
	_ = viper.BindEnv("storage.enabled", "USE_STORAGE_SERVICE")
	_ = viper.BindEnv("storage.url", "STORAGE_SERVICE_URL")
	_ = viper.BindEnv("storage.timeout_sec", "STORAGE_REQUEST_TIMEOUT")
	_ = viper.BindEnv("storage.max_attachment_mb", "MAX_ATTACHMENT_SIZE_MB")
	_ = viper.BindEnv("database.host", "DB_HOST")
	_ = viper.BindEnv("database.password", "DB_PASSWORD")

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; defaults plus env are enough to boot.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

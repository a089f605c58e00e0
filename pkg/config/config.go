package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RoleStore RoleStoreConfig
	JWT       JWTConfig
	Selection SelectionConfig
	Repair    RepairConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host string
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// RoleStoreConfig points at the external association record store.
type RoleStoreConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type JWTConfig struct {
	Secret string
}

// SelectionConfig controls the current-company cache.
type SelectionConfig struct {
	TTLHours int
}

// RepairConfig controls background re-reconciliation of failed runs.
type RepairConfig struct {
	AutoEnqueue   bool
	SweepSchedule string // cron expression for the drift sweep
	EncryptionKey string // age identity for service credentials at rest
}

type RateLimitConfig struct {
	Requests      int
	WindowSeconds int
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (r *RoleStoreConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

func (s *SelectionConfig) TTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func (s *ServerConfig) IsDevelopment() bool {
	return s.Env == "development"
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "companyswitch")
	v.SetDefault("DATABASE_PASSWORD", "companyswitch_secret")
	v.SetDefault("DATABASE_NAME", "companyswitch")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("ROLESTORE_BASE_URL", "http://localhost:9000")
	v.SetDefault("ROLESTORE_TIMEOUT_SECONDS", 15)
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("SELECTION_TTL_HOURS", 12)
	v.SetDefault("REPAIR_AUTO_ENQUEUE", false)
	v.SetDefault("REPAIR_SWEEP_SCHEDULE", "*/15 * * * *")
	v.SetDefault("RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	// Load from .env file if present
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
			Env:  v.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DATABASE_HOST"),
			Port:     v.GetInt("DATABASE_PORT"),
			User:     v.GetString("DATABASE_USER"),
			Password: v.GetString("DATABASE_PASSWORD"),
			Name:     v.GetString("DATABASE_NAME"),
			SSLMode:  v.GetString("DATABASE_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		RoleStore: RoleStoreConfig{
			BaseURL:        v.GetString("ROLESTORE_BASE_URL"),
			TimeoutSeconds: v.GetInt("ROLESTORE_TIMEOUT_SECONDS"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		Selection: SelectionConfig{
			TTLHours: v.GetInt("SELECTION_TTL_HOURS"),
		},
		Repair: RepairConfig{
			AutoEnqueue:   v.GetBool("REPAIR_AUTO_ENQUEUE"),
			SweepSchedule: v.GetString("REPAIR_SWEEP_SCHEDULE"),
			EncryptionKey: v.GetString("ENCRYPTION_KEY"),
		},
		RateLimit: RateLimitConfig{
			Requests:      v.GetInt("RATE_LIMIT_REQUESTS"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	return cfg, nil
}

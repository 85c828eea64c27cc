package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Upstream  UpstreamConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SessionConfig struct {
	Secret           string
	AccessCookieTTL  time.Duration
	RefreshCookieTTL time.Duration
	SessionCookieTTL time.Duration
}

type UpstreamConfig struct {
	BaseURL         string
	Timeout         time.Duration
	ServiceUsername string
	ServicePassword string
}

type SchedulerConfig struct {
	Lead         time.Duration
	Floor        time.Duration
	PollInterval time.Duration
}

func Load() (*Config, error) {
	// .env es opcional en producción
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mps"),
			Password: getEnv("DB_PASSWORD", "mps"),
			DBName:   getEnv("DB_NAME", "mpsconsole"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Secret:           getEnv("SESSION_SECRET", ""),
			AccessCookieTTL:  getDurationEnv("SESSION_ACCESS_TTL", 15*time.Minute),
			RefreshCookieTTL: getDurationEnv("SESSION_REFRESH_TTL", 7*24*time.Hour),
			SessionCookieTTL: getDurationEnv("SESSION_COOKIE_TTL", 7*24*time.Hour),
		},
		Upstream: UpstreamConfig{
			BaseURL:         getEnv("MPS_API_URL", "http://localhost:9000"),
			Timeout:         getDurationEnv("MPS_API_TIMEOUT", 15*time.Second),
			ServiceUsername: getEnv("MPS_SERVICE_USERNAME", ""),
			ServicePassword: getEnv("MPS_SERVICE_PASSWORD", ""),
		},
		Scheduler: SchedulerConfig{
			Lead:         getDurationEnv("SCHEDULER_LEAD", time.Minute),
			Floor:        getDurationEnv("SCHEDULER_FLOOR", 5*time.Second),
			PollInterval: getDurationEnv("SCHEDULER_POLL_INTERVAL", time.Minute),
		},
	}

	if len(cfg.Session.Secret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 bytes")
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

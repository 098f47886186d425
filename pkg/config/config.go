package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	CORSOrigins string

	DBDriver   string // postgres | mysql
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBURL      string

	RedisAddress  string
	RedisPassword string
	LockTTL       time.Duration

	JWTSecret    string
	AuthRequired bool

	LogLevel      string
	SnowflakeNode int64

	envFileMissing bool
}

// Load reads .env (if present) and the process environment
func Load() (*Config, error) {
	envLoaded := godotenv.Load() == nil

	cfg := &Config{
		Port:          getEnv("PORT", "3000"),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "batch_ledger"),
		DBURL:         os.Getenv("DATABASE_URL"),
		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DBDriver == "mysql" {
		cfg.DBPort = getEnv("DB_PORT", "3306")
	} else {
		cfg.DBPort = getEnv("DB_PORT", "5432")
	}

	var err error
	if cfg.LockTTL, err = time.ParseDuration(getEnv("LOCK_TTL", "10s")); err != nil {
		return nil, fmt.Errorf("invalid LOCK_TTL: %w", err)
	}
	if cfg.AuthRequired, err = strconv.ParseBool(getEnv("AUTH_REQUIRED", "false")); err != nil {
		return nil, fmt.Errorf("invalid AUTH_REQUIRED: %w", err)
	}
	if cfg.SnowflakeNode, err = strconv.ParseInt(getEnv("SNOWFLAKE_NODE", "1"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid SNOWFLAKE_NODE: %w", err)
	}

	switch cfg.DBDriver {
	case "postgres", "mysql":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.AuthRequired && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when AUTH_REQUIRED=true")
	}
	if !envLoaded {
		// Not an error: containers usually inject the environment directly
		cfg.envFileMissing = true
	}

	return cfg, nil
}

// EnvFileMissing reports whether no .env file was found during Load
func (c *Config) EnvFileMissing() bool {
	return c.envFileMissing
}

// DSN builds the driver specific connection string
func (c *Config) DSN() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	if c.DBDriver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Storage  StorageConfig
	Accounts AccountsConfig
	Guard    GuardConfig
	Log      LogConfig

	AuditLogFile string `envconfig:"AUDIT_LOG_FILE" default:"./data/audit.log"`
}

type StorageConfig struct {
	Backend     string        `envconfig:"STORAGE_BACKEND" default:"file"`
	File        string        `envconfig:"STORAGE_FILE" default:"./data/storage.json"`
	SQLitePath  string        `envconfig:"SQLITE_PATH" default:"./data/storage.db"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	OpTimeout   time.Duration `envconfig:"STORAGE_OP_TIMEOUT" default:"5s"`
	Redis       RedisConfig

	// WaitTimeoutSec bounds how long waitforstorage keeps retrying.
	WaitTimeoutSec int `envconfig:"WAIT_FOR_STORAGE_TIMEOUT_SEC" default:"60"`
}

type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR"`
	Password  string `envconfig:"REDIS_PASSWORD"`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	KeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"wellness:"`
}

type AccountsConfig struct {
	UsersKey   string `envconfig:"ACCOUNTS_USERS_KEY" default:"users"`
	SessionKey string `envconfig:"ACCOUNTS_SESSION_KEY" default:"currentUser"`
}

type GuardConfig struct {
	LoginPath   string `envconfig:"GUARD_LOGIN_PATH" default:"/login"`
	LandingPath string `envconfig:"GUARD_LANDING_PATH" default:"/"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WaitTimeout is WaitTimeoutSec as a duration.
func (c StorageConfig) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSec) * time.Second
}

func (c Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(c.Storage.File) == "" {
			return fmt.Errorf("STORAGE_FILE must not be empty for the file backend")
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty for the sqlite backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.Storage.Redis.Addr) == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND %q is not supported", c.Storage.Backend)
	}

	if c.Storage.OpTimeout <= 0 {
		return fmt.Errorf("STORAGE_OP_TIMEOUT must be > 0")
	}
	if c.Storage.WaitTimeoutSec <= 0 {
		return fmt.Errorf("WAIT_FOR_STORAGE_TIMEOUT_SEC must be > 0")
	}
	if c.Accounts.UsersKey == "" {
		return fmt.Errorf("ACCOUNTS_USERS_KEY must not be empty")
	}
	if c.Accounts.SessionKey == "" {
		return fmt.Errorf("ACCOUNTS_SESSION_KEY must not be empty")
	}
	if c.Accounts.UsersKey == c.Accounts.SessionKey {
		return fmt.Errorf("ACCOUNTS_USERS_KEY and ACCOUNTS_SESSION_KEY must differ")
	}
	return nil
}

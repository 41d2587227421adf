// Package config loads service configuration from an optional YAML file
// with environment variable overrides, so main stays lean and deploys
// can tweak single values without templating the whole file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   Server   `yaml:"server"`
	JWT      JWT      `yaml:"jwt"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Kafka    Kafka    `yaml:"kafka"`
	Audit    Audit    `yaml:"audit"`
	Sweeper  Sweeper  `yaml:"sweeper"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type JWT struct {
	SigningKey string        `yaml:"signing_key"`
	Issuer     string        `yaml:"issuer"`
	TTL        time.Duration `yaml:"ttl"`
}

// Redis backs the shared pause flag. Empty URL means in-memory.
type Redis struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Postgres backs the oracle data ledger. Empty URL means in-memory.
type Postgres struct {
	URL string `yaml:"url"`
}

// Kafka mirrors audit events to a topic. Empty brokers disables it.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Audit struct {
	// SQLitePath persists the audit trail. Empty means in-memory.
	SQLitePath string `yaml:"sqlite_path"`
	// AsyncBuffer > 0 publishes events off the request path.
	AsyncBuffer int `yaml:"async_buffer"`
}

type Sweeper struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	// SweepToFailed moves expired pending milestones to failed instead
	// of only reporting them.
	SweepToFailed bool `yaml:"sweep_to_failed"`
}

func defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		JWT: JWT{
			SigningKey: "dev-secret-key-change-in-production",
			Issuer:     "subsidyledger",
			TTL:        time.Hour,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Topic: "subsidyledger.audit",
		},
		Audit: Audit{
			AsyncBuffer: 256,
		},
		Sweeper: Sweeper{
			Enabled:  false,
			Schedule: "@hourly",
		},
	}
}

// Load reads the YAML file at path (skipped when empty or missing) and
// applies environment overrides on top of defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "SUBSIDYLEDGER_ADDR")
	setString(&cfg.JWT.SigningKey, "SUBSIDYLEDGER_JWT_SIGNING_KEY")
	setString(&cfg.JWT.Issuer, "SUBSIDYLEDGER_JWT_ISSUER")
	setString(&cfg.Redis.URL, "SUBSIDYLEDGER_REDIS_URL")
	setString(&cfg.Postgres.URL, "SUBSIDYLEDGER_POSTGRES_URL")
	setString(&cfg.Audit.SQLitePath, "SUBSIDYLEDGER_AUDIT_SQLITE_PATH")
	setString(&cfg.Sweeper.Schedule, "SUBSIDYLEDGER_SWEEP_SCHEDULE")
	setBool(&cfg.Sweeper.Enabled, "SUBSIDYLEDGER_SWEEP_ENABLED")
	setBool(&cfg.Sweeper.SweepToFailed, "SUBSIDYLEDGER_SWEEP_TO_FAILED")

	if v := os.Getenv("SUBSIDYLEDGER_KAFKA_BROKER"); v != "" {
		cfg.Kafka.Brokers = []string{v}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			*dst = parsed
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargeslot/backend/libs/config"
)

const defaultPort = "8085"

// HTTPConfig configures the listener.
type HTTPConfig struct {
	Port string `yaml:"port" env:"RESERVATIONS_HTTP_PORT"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	DSN         string `yaml:"dsn" env:"RESERVATIONS_POSTGRES_DSN"`
	ApplySchema bool   `yaml:"applySchema" env:"RESERVATIONS_APPLY_SCHEMA"`
}

// RedisConfig configures the shared slot lock. An empty Addr keeps locking in process.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"RESERVATIONS_REDIS_ADDR"`
	Password string        `yaml:"password" env:"RESERVATIONS_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"RESERVATIONS_REDIS_DB"`
	LockTTL  time.Duration `yaml:"lockTTL" env:"RESERVATIONS_LOCK_TTL"`
	LockWait time.Duration `yaml:"lockWait" env:"RESERVATIONS_LOCK_WAIT"`
}

// RabbitMQConfig configures lifecycle event publishing. An empty URL disables it.
type RabbitMQConfig struct {
	URL      string `yaml:"url" env:"RESERVATIONS_RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env:"RESERVATIONS_RABBITMQ_EXCHANGE"`
}

// AuthConfig holds the secret shared with the auth service for access tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"RESERVATIONS_JWT_SECRET"`
}

// ClaimsConfig configures signed verification claims.
type ClaimsConfig struct {
	Secret string        `yaml:"secret" env:"RESERVATIONS_CLAIM_SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"RESERVATIONS_CLAIM_TTL"`
}

// PolicyConfig tunes reservation timing rules.
type PolicyConfig struct {
	CreationWindow time.Duration `yaml:"creationWindow" env:"RESERVATIONS_CREATION_WINDOW"`
	ChangeCutoff   time.Duration `yaml:"changeCutoff" env:"RESERVATIONS_CHANGE_CUTOFF"`
}

// Config defines reservations service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Claims   ClaimsConfig   `yaml:"claims"`
	Policy   PolicyConfig   `yaml:"policy"`
	// SeedFile optionally points to a YAML file with stations and owners to upsert at startup.
	SeedFile string `yaml:"seedFile" env:"RESERVATIONS_SEED_FILE"`
}

// Default returns configuration with defaults applied.
func Default() *Config {
	return &Config{
		HTTP:     HTTPConfig{Port: defaultPort},
		Database: DatabaseConfig{ApplySchema: true},
		Redis: RedisConfig{
			LockTTL:  10 * time.Second,
			LockWait: 3 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{Exchange: "reservations"},
		Claims:   ClaimsConfig{TTL: 24 * time.Hour},
		Policy: PolicyConfig{
			CreationWindow: 7 * 24 * time.Hour,
			ChangeCutoff:   12 * time.Hour,
		},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Policy.CreationWindow <= 0 || c.Policy.ChangeCutoff <= 0 {
		return errors.New("config: policy durations must be positive")
	}
	if strings.TrimSpace(c.RabbitMQ.URL) != "" && strings.TrimSpace(c.RabbitMQ.Exchange) == "" {
		return errors.New("config: rabbitmq exchange required")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// ClaimSecret falls back to the JWT secret when no dedicated claim secret is set.
func (c *Config) ClaimSecret() string {
	if s := strings.TrimSpace(c.Claims.Secret); s != "" {
		return s
	}
	return c.Auth.JWTSecret
}

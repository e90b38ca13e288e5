package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the full process configuration, read from the environment.
type Config struct {
	Server       Server
	Discord      DiscordConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Auth         AuthConfig
	Verification VerificationConfig
	Limiter      LimiterConfig
	SentryDSN    string `env:"SENTRY_DSN" env-description:"sentry DSN, empty disables error reporting"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"WARDEN_ADDR" env-default:":8080"`
	Environment     string        `env:"WARDEN_ENV" env-default:"development" env-description:"development or production"`
	LogLevel        string        `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`
	AllowedOrigins  []string      `env:"ADMIN_ALLOWED_ORIGINS" env-separator:"," env-description:"origins allowed to call the admin API from a browser"`
}

// IsProduction reports whether the process runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

type DiscordConfig struct {
	Token          string `env:"DISCORD_TOKEN" env-description:"bot token"`
	AppID          string `env:"DISCORD_APP_ID" env-description:"application id used to register slash commands"`
	Prefix         string `env:"DISCORD_PREFIX" env-default:"!"`
	PrimaryGroupID string `env:"PRIMARY_GROUP_ID" env-description:"group every verified user is invited to"`
}

type PostgresConfig struct {
	DSN             string        `env:"DATABASE_URL" env-description:"empty keeps audit history in memory"`
	Driver          string        `env:"DATABASE_DRIVER" env-default:"pgx" env-description:"pgx or postgres"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" env-default:"30m"`
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL" env-description:"empty keeps rate-limit windows in memory"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" env-default:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" env-default:"3s"`
}

type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" env-separator:"," env-description:"empty disables the audit outbox relay"`
	Topic        string        `env:"KAFKA_AUDIT_TOPIC" env-default:"warden.audit"`
	Partitions   int32         `env:"KAFKA_AUDIT_PARTITIONS" env-default:"3"`
	Replication  int16         `env:"KAFKA_AUDIT_REPLICATION" env-default:"1"`
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" env-default:"2s"`
	BatchSize    int           `env:"OUTBOX_BATCH_SIZE" env-default:"100"`
}

type AuthConfig struct {
	JWTSigningKey string        `env:"JWT_SIGNING_KEY"`
	Issuer        string        `env:"JWT_ISSUER" env-default:"warden"`
	AdminTokenTTL time.Duration `env:"ADMIN_TOKEN_TTL" env-default:"1h"`
}

// VerificationConfig holds process-wide defaults. Per-group configuration
// overrides the policy fields.
type VerificationConfig struct {
	SweepInterval      time.Duration `env:"SESSION_SWEEP_INTERVAL" env-default:"5s"`
	PropagationTimeout time.Duration `env:"PROPAGATION_TIMEOUT" env-default:"5s"`
	PropagationWorkers int           `env:"PROPAGATION_WORKERS" env-default:"4"`
	InviteTTL          time.Duration `env:"INVITE_TTL" env-default:"1h"`
	PseudoIDPepper     string        `env:"PSEUDO_ID_PEPPER"`
	LockStripes        int           `env:"LOCK_STRIPES" env-default:"256"`
}

type LimiterConfig struct {
	RPS   float64 `env:"HTTP_LIMITER_RPS" env-default:"5"`
	Burst int     `env:"HTTP_LIMITER_BURST" env-default:"10"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads .env (when present) into the process environment and then the
// environment into Config.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config from environment: %w", err)
	}

	if err := cfg.Auth.resolveSigningKey(cfg.Server); err != nil {
		return nil, err
	}
	if cfg.Discord.Token == "" {
		return nil, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Verification.PseudoIDPepper == "" {
		cfg.Verification.PseudoIDPepper = cfg.Auth.JWTSigningKey
	}
	return &cfg, nil
}

// LoadAuth reads only the server and auth sections, for tools that mint
// admin tokens without a bot token.
func LoadAuth() (AuthConfig, error) {
	if err := loadDotEnv(); err != nil {
		return AuthConfig{}, err
	}
	var cfg struct {
		Server Server
		Auth   AuthConfig
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return AuthConfig{}, fmt.Errorf("read auth config from environment: %w", err)
	}
	if err := cfg.Auth.resolveSigningKey(cfg.Server); err != nil {
		return AuthConfig{}, err
	}
	return cfg.Auth, nil
}

func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (a *AuthConfig) resolveSigningKey(server Server) error {
	if a.JWTSigningKey != "" {
		return nil
	}
	if server.IsProduction() {
		return errors.New("JWT_SIGNING_KEY is required in production")
	}
	a.JWTSigningKey = devSigningKey
	return nil
}

// MustLoad is Load for main.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

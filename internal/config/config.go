package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Events   EventsConfig   `yaml:"events"`
	Logger   LoggerConfig   `yaml:"logger"`
}

type ServiceConfig struct {
	Name            string        `yaml:"name"`
	Env             string        `yaml:"env"`
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PostgresConfig is optional: with an empty DSN the CRM producers are not mounted
// and the service runs as a pure event relay.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
}

// RedisConfig switches the service into multi-instance mode when URL is set.
type RedisConfig struct {
	URL         string        `yaml:"url"`
	Channel     string        `yaml:"channel"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

type AuthConfig struct {
	JWTSecret         string `yaml:"jwt_secret"`
	Audience          string `yaml:"audience"`
	RequireStreamAuth bool   `yaml:"require_stream_auth"`
}

type EventsConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	SendBuffer        int           `yaml:"send_buffer"`
	InternalKey       string        `yaml:"internal_key"`
	LoopbackURL       string        `yaml:"loopback_url"`
	EmitTimeout       time.Duration `yaml:"emit_timeout"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "beast-crm",
			Env:             "development",
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Redis: RedisConfig{
			Channel:     "beast-crm:events",
			PingTimeout: 2 * time.Second,
		},
		Auth: AuthConfig{
			Audience: "authenticated",
		},
		Events: EventsConfig{
			HeartbeatInterval: 25 * time.Second,
			SendBuffer:        64,
			EmitTimeout:       5 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Service.Name = getEnv("SERVICE_NAME", c.Service.Name)
	c.Service.Env = getEnv("SERVICE_ENV", c.Service.Env)
	c.Service.Addr = getEnv("SERVICE_ADDR", c.Service.Addr)

	c.Postgres.DSN = getEnv("DATABASE_URL", c.Postgres.DSN)
	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.Channel = getEnv("REDIS_CHANNEL", c.Redis.Channel)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Audience = getEnv("JWT_AUDIENCE", c.Auth.Audience)

	c.Events.InternalKey = getEnv("EVENTS_INTERNAL_KEY", c.Events.InternalKey)
	c.Events.LoopbackURL = getEnv("EVENTS_LOOPBACK_URL", c.Events.LoopbackURL)

	c.Logger.Level = getEnv("LOG_LEVEL", c.Logger.Level)
	c.Logger.Format = getEnv("LOG_FORMAT", c.Logger.Format)

	var err error
	if c.Auth.RequireStreamAuth, err = getEnvBool("REQUIRE_STREAM_AUTH", c.Auth.RequireStreamAuth); err != nil {
		return err
	}
	if c.Events.HeartbeatInterval, err = getEnvDuration("EVENTS_HEARTBEAT", c.Events.HeartbeatInterval); err != nil {
		return err
	}
	if c.Events.EmitTimeout, err = getEnvDuration("EVENTS_EMIT_TIMEOUT", c.Events.EmitTimeout); err != nil {
		return err
	}
	if c.Events.SendBuffer, err = getEnvInt("EVENTS_SEND_BUFFER", c.Events.SendBuffer); err != nil {
		return err
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Service.Addr == "" {
		return errors.New("service.addr is required")
	}
	if c.Events.HeartbeatInterval <= 0 {
		return errors.New("events.heartbeat_interval must be > 0")
	}
	if c.Events.SendBuffer <= 0 {
		return errors.New("events.send_buffer must be > 0")
	}
	if c.Events.EmitTimeout <= 0 {
		return errors.New("events.emit_timeout must be > 0")
	}
	if c.Auth.JWTSecret == "" && (c.Auth.RequireStreamAuth || c.Postgres.DSN != "") {
		return errors.New("auth.jwt_secret is required when authenticated routes are enabled")
	}
	switch strings.ToLower(c.Logger.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logger.format %q must be json or text", c.Logger.Format)
	}
	return nil
}

// LoopbackTarget is the URL the loopback emitter posts events to. It defaults to
// this process's own trigger endpoint.
func (c *Config) LoopbackTarget() string {
	if c.Events.LoopbackURL != "" {
		return c.Events.LoopbackURL
	}
	addr := c.Service.Addr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + "/api/events"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

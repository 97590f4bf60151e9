package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"SERVICE_NAME", "SERVICE_ENV", "SERVICE_ADDR", "DATABASE_URL", "REDIS_URL", "REDIS_CHANNEL",
	"JWT_SECRET", "JWT_AUDIENCE", "REQUIRE_STREAM_AUTH", "EVENTS_HEARTBEAT", "EVENTS_SEND_BUFFER",
	"EVENTS_INTERNAL_KEY", "EVENTS_LOOPBACK_URL", "EVENTS_EMIT_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Service.Addr)
	assert.Equal(t, 25*time.Second, cfg.Events.HeartbeatInterval)
	assert.Equal(t, 64, cfg.Events.SendBuffer)
	assert.Equal(t, "beast-crm:events", cfg.Redis.Channel)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "http://127.0.0.1:8080/api/events", cfg.LoopbackTarget())
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
service:
  addr: ":9090"
events:
  heartbeat_interval: 5s
  send_buffer: 8
  loopback_url: "http://events.internal/api/events"
redis:
  channel: from-file
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("REDIS_CHANNEL", "from-env")
	t.Setenv("EVENTS_SEND_BUFFER", "16")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Service.Addr)
	assert.Equal(t, 5*time.Second, cfg.Events.HeartbeatInterval)
	assert.Equal(t, 16, cfg.Events.SendBuffer)
	assert.Equal(t, "from-env", cfg.Redis.Channel)
	assert.Equal(t, "http://events.internal/api/events", cfg.LoopbackTarget())
}

func TestLoad_InvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("EVENTS_HEARTBEAT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVENTS_HEARTBEAT")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero heartbeat", mutate: func(c *Config) { c.Events.HeartbeatInterval = 0 }, wantErr: true},
		{name: "zero buffer", mutate: func(c *Config) { c.Events.SendBuffer = 0 }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logger.Format = "xml" }, wantErr: true},
		{name: "stream auth without secret", mutate: func(c *Config) { c.Auth.RequireStreamAuth = true }, wantErr: true},
		{name: "database without secret", mutate: func(c *Config) { c.Postgres.DSN = "postgres://x" }, wantErr: true},
		{
			name: "database with secret",
			mutate: func(c *Config) {
				c.Postgres.DSN = "postgres://x"
				c.Auth.JWTSecret = "s3cret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

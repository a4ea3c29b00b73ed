package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWithPath_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadWithPath("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.WriteQueue.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.WriteQueue.RetryInitial())
	assert.Equal(t, 5*time.Second, cfg.WriteQueue.RetryMax())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDurationTime())
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "a development secret is generated")
}

func TestLoadWithPath_FileAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
database:
  driver: memory
writeQueue:
  maxAttempts: 3
redis:
  addr: localhost:6379
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("TASKBOARD_AUTH_JWT_SECRET", "from-env")
	t.Setenv("TASKBOARD_LOGGING_LEVEL", "debug")

	cfg, err := LoadWithPath(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.WriteQueue.MaxAttempts)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{
		Server:     ServerConfig{Port: 0},
		Database:   DatabaseConfig{Driver: "postgres"},
		Auth:       AuthConfig{TokenDuration: 60},
		WriteQueue: WriteQueueConfig{MaxAttempts: 0, RetryInitialMs: 100, RetryMaxMs: 50},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
	err := validate(cfg)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "server.port")
	assert.Contains(t, msg, "database.user")
	assert.Contains(t, msg, "writeQueue.maxAttempts")
	assert.Contains(t, msg, "retry bounds")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "board", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=board sslmode=disable", d.DSN())
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, 5, cfg.Data.MaxBackups)
	require.Equal(t, "backups", cfg.Data.BackupDir)
	require.Equal(t, "logs", cfg.Data.LogDir)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Zero(t, cfg.Session.SweepInterval)
	require.Equal(t, "sha256", cfg.Auth.PasswordScheme)
	require.Equal(t, "admin", cfg.Admin.Username)
	require.Equal(t, "local", cfg.Storage.Backend)
	require.Equal(t, "none", cfg.MQ.Backend)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATA_DIR", "/var/lib/portal")
	t.Setenv("MAX_BACKUPS", "3")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("SESSION_SWEEP_INTERVAL", "600")
	t.Setenv("PASSWORD_SCHEME", "BCRYPT")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MQ_BACKEND", "RabbitMQ")

	cfg := LoadConfig()

	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, "/var/lib/portal", cfg.Data.Dir)
	require.Equal(t, 3, cfg.Data.MaxBackups)
	require.Equal(t, 2*time.Hour, cfg.Session.TTL)
	require.Equal(t, 10*time.Minute, cfg.Session.SweepInterval)
	require.Equal(t, "bcrypt", cfg.Auth.PasswordScheme)
	require.True(t, cfg.Storage.Minio.UseSSL)
	require.Equal(t, "rabbitmq", cfg.MQ.Backend)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_DURATION", "soon")
	require.Equal(t, time.Minute, getEnvDuration("SOME_DURATION", time.Minute))
}

func TestGetEnvBool_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_BOOL", "maybe")
	require.True(t, getEnvBool("SOME_BOOL", true))
}

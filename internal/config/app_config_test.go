package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     slog.Level
	}{
		{"debug", "debug", slog.LevelDebug},
		{"info", "info", slog.LevelInfo},
		{"warn", "warn", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &AppConfig{LogLevel: tt.logLevel}
			assert.Equal(t, tt.want, c.SlogLevel())
		})
	}
}

func TestAppConfig_DirectoryPaths(t *testing.T) {
	c := &AppConfig{DataDir: "/data"}
	assert.Equal(t, "/data/logs", c.LogDir())
	assert.Equal(t, "/data/userhub.db", c.DBPath())
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("USERHUB_DATA_DIR", "/tmp/test-userhub")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("STATS_INTERVAL", "30s")
	t.Setenv("SMTP_HOST", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-userhub", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.StatsInterval)
	assert.Equal(t, 720*time.Hour, cfg.NotificationRetention)
	assert.Equal(t, "frontend.yaml", cfg.FrontendConfigFile)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t, "PORT", "USERHUB_DATA_DIR", "RATE_LIMIT_RPS", "FRONTEND_DEV_URL", "CORS_ALLOWED_ORIGINS")
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/home/tester/.userhub", cfg.DataDir)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendDevURL)
}

// unsetEnv removes keys for the duration of the test so envconfig applies defaults.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SMTPIgnoresUnprefixedVars(t *testing.T) {
	unsetEnv(t, "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM", "SMTP_ENCRYPTION")
	t.Setenv("PORT", "8080")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("FROM", "x@y.z")
	t.Setenv("USERNAME", "deploy")
	t.Setenv("ENCRYPTION", "none")
	t.Setenv("USERHUB_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SMTPConfig{Port: 587, Encryption: "starttls"}, cfg.SMTP)
	assert.False(t, cfg.SMTP.Enabled())
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_SMTPPrefixedVars(t *testing.T) {
	t.Setenv("USERHUB_DATA_DIR", t.TempDir())
	t.Setenv("SMTP_HOST", "mail.test")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USERNAME", "mailer")
	t.Setenv("SMTP_PASSWORD", "secret")
	t.Setenv("SMTP_FROM", "noreply@userhub.test")
	t.Setenv("SMTP_ENCRYPTION", "ssl_tls")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SMTPConfig{
		Host:       "mail.test",
		Port:       2525,
		Username:   "mailer",
		Password:   "secret",
		From:       "noreply@userhub.test",
		Encryption: "ssl_tls",
	}, cfg.SMTP)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestSMTPConfig_Enabled(t *testing.T) {
	assert.False(t, SMTPConfig{}.Enabled())
	assert.False(t, SMTPConfig{Host: "smtp.test"}.Enabled())
	assert.True(t, SMTPConfig{Host: "smtp.test", From: "noreply@test"}.Enabled())
}

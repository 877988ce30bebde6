package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the backend HTTP server port. Defaults to 8080.
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the root data directory. Defaults to ~/.userhub.
	DataDir string `envconfig:"USERHUB_DATA_DIR"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// CORSAllowedOrigins lists origins allowed to call the API. "*" allows any origin.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// RateLimitRPS caps API requests per second across all clients. 0 disables limiting.
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// StatsInterval is how often the scheduler refreshes the user count gauge.
	StatsInterval time.Duration `envconfig:"STATS_INTERVAL" default:"1m"`

	// NotificationRetention is how long notification log entries are kept.
	NotificationRetention time.Duration `envconfig:"NOTIFICATION_RETENTION" default:"720h"`

	// FrontendDevURL is where non-API requests are proxied when no frontend is embedded.
	FrontendDevURL string `envconfig:"FRONTEND_DEV_URL" default:"http://localhost:3000"`

	// FrontendConfigFile is the YAML file describing the frontend build and dev server.
	FrontendConfigFile string `envconfig:"FRONTEND_CONFIG" default:"frontend.yaml"`

	SMTP SMTPConfig `envconfig:"SMTP"`

	// UpdateRepository is the GitHub owner/name slug checked by "userhub update".
	UpdateRepository string `envconfig:"UPDATE_REPOSITORY" default:"shaharia-lab/userhub"`
}

// SMTPConfig holds outgoing mail settings, read from SMTP_HOST, SMTP_PORT,
// SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM and SMTP_ENCRYPTION. Mail is
// disabled when Host or From is empty.
//
// Fields stay untagged so only the SMTP_ names are read. A tagged nested
// field falls back to its bare name (PORT, HOST) when the prefixed one is unset.
type SMTPConfig struct {
	Host       string
	Port       int `default:"587"`
	Username   string
	Password   string
	From       string
	Encryption string `default:"starttls"` // "none", "starttls", "ssl_tls"
}

// Enabled reports whether enough settings are present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Load reads AppConfig from environment variables using envconfig.
// DataDir defaults to ~/.userhub if not set.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".userhub")
	}
	return &c, nil
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogDir returns the path to the log directory (~/.userhub/logs).
func (c *AppConfig) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// DBPath returns the path to the SQLite database file.
func (c *AppConfig) DBPath() string {
	return filepath.Join(c.DataDir, "userhub.db")
}

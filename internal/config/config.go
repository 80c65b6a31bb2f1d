package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPortalURL = "https://pmakportal.valence.care"
	minPageTimeoutMS = 1000
)

// ErrMissingCredentials is returned by Validate when the portal login is not configured.
var ErrMissingCredentials = errors.New("missing portal credentials")

// Config holds all configuration for the exporter and its API server.
type Config struct {
	// Portal login
	Username  string
	Password  string
	PortalURL string

	// Page waits
	PageTimeoutMS  int
	PollIntervalMS int

	// Browser selection
	CDPURL        string
	CDPAddress    string
	CDPPort       int
	LaunchBrowser bool
	Headless      bool
	ProfileDir    string
	ReplayDir     string

	// Logging
	LogLevel string
	LogFile  string

	// Notification endpoint, empty disables it
	NtfyURL string

	// API server
	ServerAddr             string
	ServerPortCandidates   []string
	ServerPortAutoFallback bool
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		Username:               os.Getenv("EOB_USER"),
		Password:               os.Getenv("EOB_PASS"),
		PortalURL:              getEnvOrDefault("EOB_PORTAL_URL", DefaultPortalURL),
		PageTimeoutMS:          getEnvIntOrDefault("EOB_PAGE_TIMEOUT_MS", 30000),
		PollIntervalMS:         getEnvIntOrDefault("EOB_POLL_INTERVAL_MS", 100),
		CDPURL:                 os.Getenv("EOB_CDP_URL"),
		CDPAddress:             getEnvOrDefault("EOB_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:                getEnvIntOrDefault("EOB_CDP_PORT", 9222),
		LaunchBrowser:          getEnvBoolOrDefault("EOB_LAUNCH_BROWSER", true),
		Headless:               getEnvBoolOrDefault("EOB_HEADLESS", true),
		ProfileDir:             getEnvOrDefault("EOB_PROFILE_DIR", "./browser_profile"),
		ReplayDir:              os.Getenv("EOB_REPLAY_DIR"),
		LogLevel:               strings.ToLower(getEnvOrDefault("EOB_LOG_LEVEL", "info")),
		LogFile:                getEnvOrDefault("EOB_LOG_FILE", "logs/eob_export.log"),
		NtfyURL:                os.Getenv("EOB_NTFY_URL"),
		ServerAddr:             getEnvOrDefault("EOB_SERVER_ADDR", "127.0.0.1:8190"),
		ServerPortCandidates:   getEnvListOrDefault("EOB_SERVER_PORT_CANDIDATES", []string{"127.0.0.1:8191", "127.0.0.1:8192"}),
		ServerPortAutoFallback: getEnvBoolOrDefault("EOB_SERVER_PORT_AUTO_FALLBACK", true),
	}
	if cfg.PageTimeoutMS < minPageTimeoutMS {
		cfg.PageTimeoutMS = minPageTimeoutMS
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 100
	}

	return cfg, nil
}

// Validate checks that a run can log in.
func (c *Config) Validate() error {
	var missing []string
	if c.Username == "" {
		missing = append(missing, "EOB_USER")
	}
	if c.Password == "" {
		missing = append(missing, "EOB_PASS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", ErrMissingCredentials, strings.Join(missing, " and "))
	}
	return nil
}

func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.PageTimeoutMS) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
		slog.Warn("ignoring invalid integer setting", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		slog.Warn("ignoring invalid boolean setting", "key", key, "value", val)
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

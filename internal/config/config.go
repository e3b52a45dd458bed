// Package config provides configuration management for portalsync.
// Non-secret settings come from a YAML file with sensible defaults; portal
// credentials come from the environment (PORTAL_USERNAME / PORTAL_PASSWORD)
// and never live in the config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the default location for the config file.
const DefaultConfigPath = "~/.config/portalsync/config.yaml"

// PortalConfig describes the upstream portal endpoints and login behavior.
type PortalConfig struct {
	// LoginURL receives the credential form POST.
	LoginURL string `yaml:"login_url"`
	// APIBase is the JSON-RPC endpoint. The session token is appended as a
	// query parameter on every call.
	APIBase string `yaml:"api_base"`
	// SessionCookie names the cookie carrying the session token.
	SessionCookie string `yaml:"session_cookie"`
	// InvalidLoginMarkers are response substrings identifying a rejected
	// credential pair. The portal answers 200 either way.
	InvalidLoginMarkers []string      `yaml:"invalid_login_markers"`
	UserAgent           string        `yaml:"user_agent"`
	MaxLoginRetries     int           `yaml:"max_login_retries"`
	LoginRetryDelay     time.Duration `yaml:"login_retry_delay"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

// SyncConfig controls the scheduled pipeline runs.
type SyncConfig struct {
	// Cron schedules the full synchronization run.
	Cron string `yaml:"cron"`
	// ExpiryCron schedules the expired-event reconciliation pass.
	ExpiryCron string `yaml:"expiry_cron"`
	// DayScanDelay spaces out the per-day fallback calls.
	DayScanDelay time.Duration `yaml:"day_scan_delay"`
	// DetailDelay spaces out enrichment detail calls.
	DetailDelay time.Duration `yaml:"detail_delay"`
}

// NotifyConfig points at the announcement sink.
type NotifyConfig struct {
	// WebhookURL receives announcement posts. Empty disables announcing.
	WebhookURL string `yaml:"webhook_url"`
	// Channel names the target channel sent with each announcement.
	Channel string `yaml:"channel"`
	// MonitorChannel receives operational signals such as auth failures.
	MonitorChannel string        `yaml:"monitor_channel"`
	Timeout        time.Duration `yaml:"timeout"`
}

// Config holds the portalsync configuration.
type Config struct {
	// Listen is the HTTP API listen address.
	Listen   string       `yaml:"listen"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
	Timezone string       `yaml:"timezone"`
	Portal   PortalConfig `yaml:"portal"`
	Sync     SyncConfig   `yaml:"sync"`
	Notify   NotifyConfig `yaml:"notify"`
}

// Credentials are the portal login secrets, environment-only.
type Credentials struct {
	Username string `envconfig:"USERNAME" required:"true"`
	Password string `envconfig:"PASSWORD" required:"true"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:   "127.0.0.1:8475",
		DataDir:  "./data",
		LogLevel: "info",
		Timezone: "America/Sao_Paulo",
		Portal: PortalConfig{
			SessionCookie:       "sesskey",
			InvalidLoginMarkers: []string{"Invalid username or password", "Usuário ou senha inválidos"},
			UserAgent:           "portalsync/1.0",
			MaxLoginRetries:     3,
			LoginRetryDelay:     2 * time.Second,
			RequestTimeout:      30 * time.Second,
		},
		Sync: SyncConfig{
			Cron:         "0 */6 * * *",
			ExpiryCron:   "*/30 * * * *",
			DayScanDelay: 500 * time.Millisecond,
			DetailDelay:  time.Second,
		},
		Notify: NotifyConfig{
			Timeout: 15 * time.Second,
		},
	}
}

// Normalize fills zero values with defaults so partial config files behave.
func (c *Config) Normalize() {
	def := Default()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Portal.SessionCookie == "" {
		c.Portal.SessionCookie = def.Portal.SessionCookie
	}
	if len(c.Portal.InvalidLoginMarkers) == 0 {
		c.Portal.InvalidLoginMarkers = def.Portal.InvalidLoginMarkers
	}
	if c.Portal.UserAgent == "" {
		c.Portal.UserAgent = def.Portal.UserAgent
	}
	if c.Portal.MaxLoginRetries <= 0 {
		c.Portal.MaxLoginRetries = def.Portal.MaxLoginRetries
	}
	if c.Portal.LoginRetryDelay <= 0 {
		c.Portal.LoginRetryDelay = def.Portal.LoginRetryDelay
	}
	if c.Portal.RequestTimeout <= 0 {
		c.Portal.RequestTimeout = def.Portal.RequestTimeout
	}
	if c.Sync.Cron == "" {
		c.Sync.Cron = def.Sync.Cron
	}
	if c.Sync.ExpiryCron == "" {
		c.Sync.ExpiryCron = def.Sync.ExpiryCron
	}
	if c.Sync.DayScanDelay <= 0 {
		c.Sync.DayScanDelay = def.Sync.DayScanDelay
	}
	if c.Sync.DetailDelay <= 0 {
		c.Sync.DetailDelay = def.Sync.DetailDelay
	}
	if c.Notify.Timeout <= 0 {
		c.Notify.Timeout = def.Notify.Timeout
	}
}

// Validate checks the settings a sync run cannot proceed without.
func (c *Config) Validate() error {
	if c.Portal.LoginURL == "" {
		return errors.New("portal.login_url is required")
	}
	if c.Portal.APIBase == "" {
		return errors.New("portal.api_base is required")
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given file path. A missing file yields
// the defaults so a first run can start from environment and flags alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist - use defaults
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// LoadCredentials reads the portal secrets from PORTAL_* environment
// variables.
func LoadCredentials() (*Credentials, error) {
	var creds Credentials
	if err := envconfig.Process("PORTAL", &creds); err != nil {
		return nil, fmt.Errorf("read portal credentials: %w", err)
	}
	return &creds, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sesskey", cfg.Portal.SessionCookie)
	assert.Equal(t, 3, cfg.Portal.MaxLoginRetries)
	assert.Equal(t, 2*time.Second, cfg.Portal.LoginRetryDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.DayScanDelay)
}

func TestLoadPartialFileNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
data_dir: /var/lib/portalsync
portal:
  login_url: https://portal.example/login
  api_base: https://portal.example/service.php
  max_login_retries: 5
sync:
  cron: "15 * * * *"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/portalsync", cfg.DataDir)
	assert.Equal(t, 5, cfg.Portal.MaxLoginRetries)
	assert.Equal(t, "15 * * * *", cfg.Sync.Cron)
	// Unset fields still get defaults.
	assert.Equal(t, "sesskey", cfg.Portal.SessionCookie)
	assert.Equal(t, time.Second, cfg.Sync.DetailDelay)
	assert.NotEmpty(t, cfg.Portal.InvalidLoginMarkers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDurationsFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
portal:
  login_url: u
  api_base: a
  login_retry_delay: 250ms
sync:
  day_scan_delay: 50ms
  detail_delay: 1ms
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Portal.LoginRetryDelay)
	assert.Equal(t, 50*time.Millisecond, cfg.Sync.DayScanDelay)
	assert.Equal(t, time.Millisecond, cfg.Sync.DetailDelay)
}

func TestValidateRequiresEndpoints(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Portal.LoginURL = "https://portal.example/login"
	assert.Error(t, cfg.Validate())

	cfg.Portal.APIBase = "https://portal.example/service.php"
	assert.NoError(t, cfg.Validate())
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	t.Setenv("PORTAL_USERNAME", "rm12345")
	t.Setenv("PORTAL_PASSWORD", "hunter2")

	creds, err := LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "rm12345", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)
}

func TestLoadCredentialsMissingEnv(t *testing.T) {
	// t.Setenv registers the restore; the vars must be truly absent for the
	// required check to trip.
	t.Setenv("PORTAL_USERNAME", "x")
	t.Setenv("PORTAL_PASSWORD", "x")
	os.Unsetenv("PORTAL_USERNAME")
	os.Unsetenv("PORTAL_PASSWORD")

	_, err := LoadCredentials()
	assert.Error(t, err)
}

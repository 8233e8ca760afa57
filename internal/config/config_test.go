package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 0.70, cfg.Risk.CriticalThreshold)
	assert.Equal(t, 0.50, cfg.Risk.HighThreshold)
	assert.Equal(t, 0.30, cfg.Risk.MediumThreshold)
	assert.Equal(t, 3, cfg.Email.MaxAttempts)
	assert.Equal(t, 10, cfg.Email.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.EmailPollInterval())
	assert.Equal(t, 7, cfg.Followups.DefaultWindowDays)
	assert.True(t, cfg.Reminders.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.ReminderWindow())
	assert.Equal(t, 15*time.Minute, cfg.ReminderInterval())
}

func TestLoadConfig_RejectsNonPositiveReminderWindow(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: x
reminders:
  window: 0s
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reminders window")
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
jwt:
  secret: from-file
risk:
  critical_threshold: 0.8
  high_threshold: 0.6
  medium_threshold: 0.4
email:
  max_attempts: 5
`)
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("EARLYALERT_EMAIL_MAX_ATTEMPTS", "7")
	t.Setenv("EMAIL_MAX_ATTEMPTS", "6")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 0.8, cfg.Risk.CriticalThreshold)
	assert.Equal(t, 7, cfg.Email.MaxAttempts, "prefixed variable wins")
}

func TestLoadConfig_RejectsUnorderedThresholds(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: x
risk:
  critical_threshold: 0.5
  high_threshold: 0.6
  medium_threshold: 0.3
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk thresholds")
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestLoadConfig_BadEnvValue(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("EMAIL_BATCH_SIZE", "lots")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EMAIL_BATCH_SIZE")
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{}
	cfg.Server.AllowedOrigins = "https://a.edu, https://b.edu,,"
	assert.Equal(t, []string{"https://a.edu", "https://b.edu"}, cfg.AllowedOrigins())
}

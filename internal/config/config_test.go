package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	assert.Equal(t, "0 0 * * *", cfg.CacheRefreshCron)
	assert.Equal(t, "10 8 * * *", cfg.NewsletterRefreshCron)
	assert.Equal(t, 150, cfg.Calendar.DaysAhead)
	assert.Equal(t, 120, cfg.Calendar.DaysBack)
	assert.Equal(t, 150, cfg.Calendar.Limit)
	assert.Equal(t, 14, cfg.Newsletter.StaleAfterDays)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadPartialFileNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
timezone: America/New_York
calendar:
  url: https://calendars.example.com/merged.ics
  days_ahead: 30
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.Timezone)
	assert.Equal(t, "https://calendars.example.com/merged.ics", cfg.Calendar.URL)
	assert.Equal(t, 30, cfg.Calendar.DaysAhead)
	// Unset values fall back to defaults.
	assert.Equal(t, 120, cfg.Calendar.DaysBack)
	assert.Equal(t, 150, cfg.Calendar.Limit)
	assert.Equal(t, []string{"bear", "ewmba", "haas", "berkeley"}, cfg.Newsletter.TitlePatterns)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("GEMINI_API_KEY", "gk-123")
	t.Setenv("CALENDAR_ICS_URL", "https://env.example.com/cal.ics")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
calendar:
  url: https://file.example.com/cal.ics
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.CronSecret)
	assert.Equal(t, "gk-123", cfg.AI.APIKey)
	assert.Equal(t, "https://env.example.com/cal.ics", cfg.Calendar.URL)
}

func TestLoadInvalidTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus_Mons\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateCacheDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Driver = "redis"
	assert.Error(t, cfg.Validate())

	cfg.Cache.Driver = "file"
	assert.NoError(t, cfg.Validate())
}

func TestSecretsNeverSaved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.CronSecret = "s3cret"
	cfg.AI.APIKey = "gk-123"
	cfg.Notify.TelegramToken = "tg-456"
	require.NoError(t, Save(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.NotContains(t, string(data), "gk-123")
	assert.NotContains(t, string(data), "tg-456")
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "America/Los_Angeles", cfg.Location().String())
}

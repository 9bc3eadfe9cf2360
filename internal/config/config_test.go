package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FOUREYES_GITHUB_TOKEN", "ghp_test")
	t.Setenv("FOUREYES_PLATFORM_URL", "https://console.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_test", cfg.GitHubToken)
	assert.Equal(t, "https://console.example.com", cfg.PlatformURL)
	assert.Equal(t, "foureyes.db", cfg.DBPath)
	assert.Equal(t, "applications.json", cfg.ApplicationsFile)
	assert.Equal(t, time.Minute, cfg.SyncInterval)
	assert.Equal(t, time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 2*time.Second, cfg.AppDelay)
	assert.Equal(t, 5, cfg.VerifyLimit)
	assert.Equal(t, []string{"dependabot[bot]"}, cfg.AutomationLogins)
	assert.True(t, cfg.LegacyCutoff.IsZero())
	assert.Empty(t, cfg.Holidays)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("FOUREYES_GITHUB_TOKEN", "")
	t.Setenv("FOUREYES_PLATFORM_URL", "https://console.example.com")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("FOUREYES_GITHUB_TOKEN", "ghp_test")
	t.Setenv("FOUREYES_PLATFORM_URL", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FOUREYES_SYNC_INTERVAL", "5m")
	t.Setenv("FOUREYES_VERIFY_LIMIT", "10")
	t.Setenv("FOUREYES_AUTOMATION_LOGINS", "dependabot[bot], renovate[bot]")
	t.Setenv("FOUREYES_LEGACY_CUTOFF", "2026-01-01T00:00:00Z")
	t.Setenv("FOUREYES_HOLIDAYS", "2026-05-17, 2026-12-25")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 10, cfg.VerifyLimit)
	assert.Equal(t, []string{"dependabot[bot]", "renovate[bot]"}, cfg.AutomationLogins)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), cfg.LegacyCutoff)
	assert.Equal(t, []string{"2026-05-17", "2026-12-25"}, cfg.Holidays)
	assert.True(t, cfg.HolidayMap()["2026-12-25"])
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "FOUREYES_SYNC_INTERVAL", "soon"},
		{"bad limit", "FOUREYES_VERIFY_LIMIT", "zero"},
		{"limit below one", "FOUREYES_VERIFY_LIMIT", "0"},
		{"bad cutoff", "FOUREYES_LEGACY_CUTOFF", "yesterday"},
		{"bad holiday", "FOUREYES_HOLIDAYS", "christmas"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadApplications(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "applications.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{
			"name": "myapp",
			"team": "myteam",
			"environment": "prod",
			"approved_owner": "navikt",
			"approved_repo": "myapp",
			"reminders_enabled": true,
			"reminder_weekdays": ["tuesday", "thursday"],
			"reminder_time": "09:00",
			"reminder_channel": "#myteam-alerts"
		}
	]`), 0o600))

	cfg := &Config{ApplicationsFile: file}
	apps, err := cfg.LoadApplications()

	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, "myapp", apps[0].Name)
	assert.Equal(t, []string{"tuesday", "thursday"}, apps[0].ReminderWeekdays)
	assert.True(t, apps[0].RemindersEnabled)
}

func TestLoadApplications_MissingFileIsNotAnError(t *testing.T) {
	cfg := &Config{ApplicationsFile: filepath.Join(t.TempDir(), "absent.json")}

	apps, err := cfg.LoadApplications()

	require.NoError(t, err)
	assert.Nil(t, apps)
}

func TestLoadApplications_IncompleteEntry(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "applications.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name": "myapp", "team": "myteam"}]`), 0o600))

	cfg := &Config{ApplicationsFile: file}
	_, err := cfg.LoadApplications()

	assert.Error(t, err)
}

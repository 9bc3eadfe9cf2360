// Package config loads application configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the worker configuration loaded from environment variables.
type Config struct {
	GitHubToken     string
	PlatformURL     string
	PlatformAPIKey  string
	SlackWebhookURL string
	DetailBaseURL   string

	DBPath           string
	ApplicationsFile string

	SyncInterval     time.Duration
	ReminderInterval time.Duration
	AppDelay         time.Duration
	VerifyLimit      int

	// AutomationLogins are identities whose pull requests get the relaxed
	// post-approval commit policy (e.g. "dependabot[bot]").
	AutomationLogins []string
	// LegacyCutoff marks the start of monitoring; older deployments are
	// recorded as legacy. Zero disables the cutoff.
	LegacyCutoff time.Time
	// Holidays are reminder-excluded dates in "2006-01-02" form.
	Holidays []string
}

// SeedApplication is one monitored application as declared in the
// applications file.
type SeedApplication struct {
	Name             string   `json:"name"`
	Team             string   `json:"team"`
	Environment      string   `json:"environment"`
	ApprovedOwner    string   `json:"approved_owner"`
	ApprovedRepo     string   `json:"approved_repo"`
	RemindersEnabled bool     `json:"reminders_enabled"`
	ReminderWeekdays []string `json:"reminder_weekdays"`
	ReminderTime     string   `json:"reminder_time"`
	ReminderChannel  string   `json:"reminder_channel"`
}

// Load reads configuration from environment variables and returns a
// validated Config. FOUREYES_GITHUB_TOKEN and FOUREYES_PLATFORM_URL are
// required; everything else has a default. Optional variables:
// FOUREYES_SYNC_INTERVAL (1m), FOUREYES_REMINDER_INTERVAL (1m),
// FOUREYES_APP_DELAY (2s), FOUREYES_VERIFY_LIMIT (5),
// FOUREYES_DB_PATH (foureyes.db), FOUREYES_APPLICATIONS_FILE
// (applications.json), FOUREYES_AUTOMATION_LOGINS (dependabot[bot]),
// FOUREYES_LEGACY_CUTOFF (unset), FOUREYES_HOLIDAYS (unset).
func Load() (*Config, error) {
	token := os.Getenv("FOUREYES_GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("FOUREYES_GITHUB_TOKEN is required")
	}

	platformURL := os.Getenv("FOUREYES_PLATFORM_URL")
	if platformURL == "" {
		return nil, fmt.Errorf("FOUREYES_PLATFORM_URL is required")
	}

	cfg := &Config{
		GitHubToken:      token,
		PlatformURL:      platformURL,
		PlatformAPIKey:   os.Getenv("FOUREYES_PLATFORM_API_KEY"),
		SlackWebhookURL:  os.Getenv("FOUREYES_SLACK_WEBHOOK_URL"),
		DetailBaseURL:    envDefault("FOUREYES_DETAIL_BASE_URL", "http://localhost:8080"),
		DBPath:           envDefault("FOUREYES_DB_PATH", "foureyes.db"),
		ApplicationsFile: envDefault("FOUREYES_APPLICATIONS_FILE", "applications.json"),
		SyncInterval:     time.Minute,
		ReminderInterval: time.Minute,
		AppDelay:         2 * time.Second,
		VerifyLimit:      5,
		AutomationLogins: []string{"dependabot[bot]"},
	}

	var err error
	if cfg.SyncInterval, err = envDuration("FOUREYES_SYNC_INTERVAL", cfg.SyncInterval); err != nil {
		return nil, err
	}
	if cfg.ReminderInterval, err = envDuration("FOUREYES_REMINDER_INTERVAL", cfg.ReminderInterval); err != nil {
		return nil, err
	}
	if cfg.AppDelay, err = envDuration("FOUREYES_APP_DELAY", cfg.AppDelay); err != nil {
		return nil, err
	}

	if v, ok := os.LookupEnv("FOUREYES_VERIFY_LIMIT"); ok {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("FOUREYES_VERIFY_LIMIT has invalid value %q", v)
		}
		cfg.VerifyLimit = limit
	}

	if v, ok := os.LookupEnv("FOUREYES_AUTOMATION_LOGINS"); ok {
		cfg.AutomationLogins = splitList(v)
	}

	if v, ok := os.LookupEnv("FOUREYES_LEGACY_CUTOFF"); ok && v != "" {
		cutoff, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("FOUREYES_LEGACY_CUTOFF has invalid timestamp %q: %w", v, err)
		}
		cfg.LegacyCutoff = cutoff
	}

	if v, ok := os.LookupEnv("FOUREYES_HOLIDAYS"); ok {
		for _, d := range splitList(v) {
			if _, err := time.Parse("2006-01-02", d); err != nil {
				return nil, fmt.Errorf("FOUREYES_HOLIDAYS has invalid date %q", d)
			}
			cfg.Holidays = append(cfg.Holidays, d)
		}
	}

	return cfg, nil
}

// LoadApplications reads the monitored-application seed file. A missing file
// is not an error; the worker then runs with whatever the store already has.
func (c *Config) LoadApplications() ([]SeedApplication, error) {
	data, err := os.ReadFile(c.ApplicationsFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read applications file: %w", err)
	}

	var apps []SeedApplication
	if err := json.Unmarshal(data, &apps); err != nil {
		return nil, fmt.Errorf("parse applications file %s: %w", c.ApplicationsFile, err)
	}

	for _, app := range apps {
		if app.Name == "" || app.Team == "" || app.ApprovedOwner == "" || app.ApprovedRepo == "" {
			return nil, fmt.Errorf("applications file %s: every entry needs name, team, approved_owner and approved_repo", c.ApplicationsFile)
		}
	}

	return apps, nil
}

// HolidayMap returns the holidays as a lookup set.
func (c *Config) HolidayMap() map[string]bool {
	m := make(map[string]bool, len(c.Holidays))
	for _, d := range c.Holidays {
		m[d] = true
	}
	return m
}

func envDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	return parsed, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CalendarConfig describes where the merged ICS feed comes from and how
// wide the read window is.
type CalendarConfig struct {
	// URL is the remote ICS endpoint. Overridable via CALENDAR_ICS_URL.
	URL string `yaml:"url" json:"url"`
	// File is the local fallback ICS path.
	File string `yaml:"file" json:"file"`
	// BaseURL is the base address used for the HTTP self-fetch fallback
	// (<base_url>/calendar.ics) when both URL and File fail.
	BaseURL string `yaml:"base_url" json:"base_url"`

	DaysAhead int `yaml:"days_ahead" json:"days_ahead"`
	DaysBack  int `yaml:"days_back" json:"days_back"`
	Limit     int `yaml:"limit" json:"limit"`

	// CacheDir holds the ETag/Last-Modified disk cache for remote fetches.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// NewsletterConfig describes the newsletter archive to scrape.
type NewsletterConfig struct {
	// ArchiveURL is the newsletter archive listing page.
	ArchiveURL string `yaml:"archive_url" json:"archive_url"`
	// TitlePatterns are organization-name substrings one of which is
	// expected (case-insensitive) in a scraped newsletter title.
	TitlePatterns []string `yaml:"title_patterns" json:"title_patterns"`
	// StaleAfterDays triggers a staleness warning when the date embedded
	// in the newsletter title is older than this.
	StaleAfterDays int `yaml:"stale_after_days" json:"stale_after_days"`
	// RenderFallback enables headless-browser rendering of the archive
	// page when static HTML yields no issue links.
	RenderFallback bool `yaml:"render_fallback" json:"render_fallback"`
}

// AIConfig configures the completion API used by the organizer,
// extractor and my-week analyzer.
type AIConfig struct {
	// APIKey comes from the GEMINI_API_KEY environment variable.
	APIKey  string `yaml:"-" json:"-"`
	Model   string `yaml:"model" json:"model"`
	BaseURL string `yaml:"base_url" json:"base_url"`
}

// CacheConfig selects the KV store backing.
type CacheConfig struct {
	// Driver is "sqlite" or "file".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the database file (sqlite) or directory (file).
	Path string `yaml:"path" json:"path"`
}

// NotifyConfig configures the outbound run-report channel.
type NotifyConfig struct {
	// TelegramToken comes from the TELEGRAM_TOKEN environment variable.
	TelegramToken string `yaml:"-" json:"-"`
	ChatID        int64  `yaml:"chat_id" json:"chat_id"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for schedules and all-day
	// normalization (e.g. "America/Los_Angeles").
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CronSecret is the bearer token required by the cron endpoints.
	// It comes from the CRON_SECRET environment variable.
	CronSecret string `yaml:"-" json:"-"`

	// CacheRefreshCron / NewsletterRefreshCron are cron-style schedule
	// strings for the two refresh pipelines.
	CacheRefreshCron      string `yaml:"cache_refresh" json:"cache_refresh"`
	NewsletterRefreshCron string `yaml:"newsletter_refresh" json:"newsletter_refresh"`

	Calendar   CalendarConfig   `yaml:"calendar" json:"calendar"`
	Newsletter NewsletterConfig `yaml:"newsletter" json:"newsletter"`
	AI         AIConfig         `yaml:"ai" json:"ai"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Notify     NotifyConfig     `yaml:"notify" json:"notify"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                "127.0.0.1:8080",
		Timezone:              "America/Los_Angeles",
		LogLevel:              "info",
		CacheRefreshCron:      "0 0 * * *",
		NewsletterRefreshCron: "10 8 * * *",
		Calendar: CalendarConfig{
			File:      "public/calendar.ics",
			DaysAhead: 150,
			DaysBack:  120,
			Limit:     150,
			CacheDir:  "./var/ics-cache",
		},
		Newsletter: NewsletterConfig{
			TitlePatterns:  []string{"bear", "ewmba", "haas", "berkeley"},
			StaleAfterDays: 14,
			RenderFallback: false,
		},
		AI: AIConfig{
			Model:   "gemini-2.0-flash-lite",
			BaseURL: "https://generativelanguage.googleapis.com",
		},
		Cache: CacheConfig{
			Driver: "sqlite",
			Path:   "./var/cohortdash.db",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.CacheRefreshCron == "" {
		c.CacheRefreshCron = def.CacheRefreshCron
	}
	if c.NewsletterRefreshCron == "" {
		c.NewsletterRefreshCron = def.NewsletterRefreshCron
	}
	if c.Calendar.File == "" {
		c.Calendar.File = def.Calendar.File
	}
	if c.Calendar.DaysAhead <= 0 {
		c.Calendar.DaysAhead = def.Calendar.DaysAhead
	}
	if c.Calendar.DaysBack <= 0 {
		c.Calendar.DaysBack = def.Calendar.DaysBack
	}
	if c.Calendar.Limit <= 0 {
		c.Calendar.Limit = def.Calendar.Limit
	}
	if c.Calendar.CacheDir == "" {
		c.Calendar.CacheDir = def.Calendar.CacheDir
	}
	if c.Newsletter.TitlePatterns == nil {
		c.Newsletter.TitlePatterns = def.Newsletter.TitlePatterns
	}
	if c.Newsletter.StaleAfterDays <= 0 {
		c.Newsletter.StaleAfterDays = def.Newsletter.StaleAfterDays
	}
	if c.AI.Model == "" {
		c.AI.Model = def.AI.Model
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = def.AI.BaseURL
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = def.Cache.Driver
	}
	if c.Cache.Path == "" {
		c.Cache.Path = def.Cache.Path
	}
}

// applyEnvOverrides pulls secrets and deploy-specific values from the
// environment. Environment always wins over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CRON_SECRET"); v != "" {
		c.CronSecret = v
	}
	if v := os.Getenv("CALENDAR_ICS_URL"); v != "" {
		c.Calendar.URL = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Calendar.BaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		c.Notify.TelegramToken = v
	}
}

// Validate checks values that would otherwise fail deep inside a
// pipeline run.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	switch c.Cache.Driver {
	case "sqlite", "file":
	default:
		return fmt.Errorf("unknown cache driver %q", c.Cache.Driver)
	}
	return nil
}

// Location returns the configured display timezone.
// Validate must have succeeded first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written (0600) and
//     returned.
//   - Otherwise the YAML is read, normalized, env-overridden and
//     validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// The write is atomic (temp file + rename) and the final file ends up
// with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".cohortdash-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

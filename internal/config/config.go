package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"timecast/internal/fsutil"
)

// ICSConfig describes a single ICS subscription imported into the event store.
type ICSConfig struct {
	URL  string `yaml:"url" toml:"url" json:"url"`
	ID   string `yaml:"id" toml:"id" json:"id"`
	Name string `yaml:"name" toml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" toml:"username" json:"username"`
	Password string `yaml:"password" toml:"password" json:"password"`
}

// StoreConfig selects the key-value blob backend for the event collection.
type StoreConfig struct {
	// Backend is one of "file", "sqlite", "postgres" or "memory".
	Backend string `yaml:"backend" toml:"backend" json:"backend"`
	// Path is a directory for "file" and a database file for "sqlite".
	Path string `yaml:"path" toml:"path" json:"path"`
	// DSN is the connection string for "postgres".
	DSN string `yaml:"dsn,omitempty" toml:"dsn,omitempty" json:"dsn,omitempty"`
}

// TimelineConfig is the visible window of the day and week views.
type TimelineConfig struct {
	Start           string  `yaml:"start" toml:"start" json:"start"`
	End             string  `yaml:"end" toml:"end" json:"end"`
	PixelsPerMinute float64 `yaml:"pixels_per_minute" toml:"pixels_per_minute" json:"pixels_per_minute"`
	Density         float64 `yaml:"density" toml:"density" json:"density"`
}

// ConflictConfig decides whether edits and drag moves are checked for overlap.
// Creation is always checked.
type ConflictConfig struct {
	EditPolicy string `yaml:"edit_policy" toml:"edit_policy" json:"edit_policy"`
	MovePolicy string `yaml:"move_policy" toml:"move_policy" json:"move_policy"`
}

// TelegramConfig sends reminders to a chat through a bot.
type TelegramConfig struct {
	Token  string `yaml:"token" toml:"token" json:"token"`
	ChatID int64  `yaml:"chat_id" toml:"chat_id" json:"chat_id"`
	// Endpoint overrides the Bot API URL template, mostly for tests.
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// ReminderConfig controls the in-process exact alarm facility.
type ReminderConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled" json:"enabled"`
	// ExactAlarms mirrors the platform permission for exact wake-up alarms.
	// When false every scheduling attempt fails with a permission error.
	ExactAlarms bool `yaml:"exact_alarms" toml:"exact_alarms" json:"exact_alarms"`
	// Desktop delivers through osascript / notify-send.
	Desktop  bool            `yaml:"desktop" toml:"desktop" json:"desktop"`
	Telegram *TelegramConfig `yaml:"telegram,omitempty" toml:"telegram,omitempty" json:"telegram,omitempty"`
}

// WeatherConfig points the forecast client at a location. Zero coordinates
// disable the outdoor check.
type WeatherConfig struct {
	Latitude  float64 `yaml:"latitude" toml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" toml:"longitude" json:"longitude"`
	BaseURL   string  `yaml:"base_url" toml:"base_url" json:"base_url"`
}

// Enabled reports whether coordinates are configured.
func (w WeatherConfig) Enabled() bool {
	return w.Latitude != 0 || w.Longitude != 0
}

const (
	PolicyAllow  = "allow"
	PolicyReject = "reject"
)

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" toml:"listen" json:"listen"`

	// Timezone is the IANA zone used for day boundaries and persisted dates.
	Timezone string `yaml:"timezone" toml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" toml:"week_start" json:"week_start"`

	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`

	// RefreshMinutes is how often the server re-syncs feeds and the forecast.
	RefreshMinutes int `yaml:"refresh_minutes" toml:"refresh_minutes" json:"refresh_minutes"`

	Store     StoreConfig    `yaml:"store" toml:"store" json:"store"`
	Timeline  TimelineConfig `yaml:"timeline" toml:"timeline" json:"timeline"`
	Conflicts ConflictConfig `yaml:"conflicts" toml:"conflicts" json:"conflicts"`
	Reminders ReminderConfig `yaml:"reminders" toml:"reminders" json:"reminders"`
	Weather   WeatherConfig  `yaml:"weather" toml:"weather" json:"weather"`

	ICS         []ICSConfig `yaml:"ics" toml:"ics" json:"ics"`
	ICSCacheDir string      `yaml:"ics_cache_dir" toml:"ics_cache_dir" json:"ics_cache_dir"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" toml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "127.0.0.1:8080",
		Timezone:  "Local",
		WeekStart: "sunday",
		LogLevel:  "info",

		RefreshMinutes: 30,

		Store: StoreConfig{
			Backend: "file",
			Path:    "./var/timecast",
		},
		Timeline: TimelineConfig{
			Start:           "08:00",
			End:             "20:00",
			PixelsPerMinute: 1,
			Density:         1,
		},
		Conflicts: ConflictConfig{
			EditPolicy: PolicyAllow,
			MovePolicy: PolicyAllow,
		},
		Reminders: ReminderConfig{
			Enabled:     true,
			ExactAlarms: true,
			Desktop:     true,
		},
		Weather: WeatherConfig{
			BaseURL: "https://api.open-meteo.com/v1/",
		},
		ICS:         []ICSConfig{},
		ICSCacheDir: "./var/timecast/ics-cache",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = d.WeekStart
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.RefreshMinutes <= 0 {
		c.RefreshMinutes = d.RefreshMinutes
	}
	switch c.Store.Backend {
	case "file", "sqlite", "postgres", "memory":
	default:
		c.Store.Backend = d.Store.Backend
	}
	if c.Store.Path == "" {
		c.Store.Path = d.Store.Path
	}
	if c.Timeline.Start == "" {
		c.Timeline.Start = d.Timeline.Start
	}
	if c.Timeline.End == "" {
		c.Timeline.End = d.Timeline.End
	}
	if c.Timeline.PixelsPerMinute <= 0 {
		c.Timeline.PixelsPerMinute = d.Timeline.PixelsPerMinute
	}
	if c.Timeline.Density <= 0 {
		c.Timeline.Density = d.Timeline.Density
	}
	c.Conflicts.EditPolicy = normalizePolicy(c.Conflicts.EditPolicy)
	c.Conflicts.MovePolicy = normalizePolicy(c.Conflicts.MovePolicy)
	if t := c.Reminders.Telegram; t != nil && (t.Token == "" || t.ChatID == 0) {
		c.Reminders.Telegram = nil
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = d.Weather.BaseURL
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.ICSCacheDir == "" {
		c.ICSCacheDir = d.ICSCacheDir
	}
}

func normalizePolicy(p string) string {
	if p == PolicyReject {
		return PolicyReject
	}
	return PolicyAllow
}

// Location resolves Timezone; "Local" and unknown names map to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, fmt.Errorf("config: load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// WeekStartDay maps WeekStart to a time.Weekday.
func (c *Config) WeekStartDay() time.Weekday {
	if c.WeekStart == "monday" {
		return time.Monday
	}
	return time.Sunday
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load loads configuration from path. Files ending in .toml are decoded as
// TOML, everything else as YAML.
//
// If the file does not exist a default config is written with 0600 perms and
// returned. Otherwise the file is decoded and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so that booleans absent from the file keep their
	// default value instead of decoding to false.
	cfg := DefaultConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory with 0700 when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return err
		}
	}
	return fsutil.WriteFileAtomic(path, data)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

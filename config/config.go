// Package config loads the server configuration from YAML, an optional .env
// file and PLATA_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/ULBS/platacuora-timetech-sub000/academic"
)

const (
	DefaultListen        = "127.0.0.1:8080"
	DefaultDatabasePath  = "./data/platacuora.db"
	DefaultMaxPeriodDays = 180
	DefaultExtendedWeeks = 2
	DefaultHolidayCron   = "0 3 * * *"
)

// LogConfig selects the zap preset and level.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "json" (production) or "console" (development).
	Format string `yaml:"format" json:"format"`
}

// HolidayConfig describes where public holidays come from.
type HolidayConfig struct {
	// ICSURL is an optional ICS feed (http, https or webcal).
	ICSURL string `yaml:"ics_url" json:"ics_url"`
	// Refresh is a cron spec for re-importing the ICS feed.
	Refresh string `yaml:"refresh" json:"refresh"`
	// RomanianDefaults adds the computed Romanian legal holidays.
	RomanianDefaults bool `yaml:"romanian_defaults" json:"romanian_defaults"`
}

// Config is the top-level server configuration.
type Config struct {
	Listen       string    `yaml:"listen" json:"listen"`
	DatabasePath string    `yaml:"database_path" json:"database_path"`
	Log          LogConfig `yaml:"log" json:"log"`

	// MaxPeriodDays bounds the period of a single declaration.
	MaxPeriodDays int `yaml:"max_period_days" json:"max_period_days"`
	// ExtendedWeeks is the number of extra weeks in extended mode.
	ExtendedWeeks int `yaml:"extended_weeks" json:"extended_weeks"`

	// Coefficients maps activity type -> hour kind -> pay coefficient.
	// Empty means the standard table.
	Coefficients map[string]map[string]float64 `yaml:"coefficients,omitempty" json:"coefficients,omitempty"`

	Holidays HolidayConfig `yaml:"holidays" json:"holidays"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        DefaultListen,
		DatabasePath:  DefaultDatabasePath,
		Log:           LogConfig{Level: "info", Format: "json"},
		MaxPeriodDays: DefaultMaxPeriodDays,
		ExtendedWeeks: DefaultExtendedWeeks,
		Holidays: HolidayConfig{
			Refresh:          DefaultHolidayCron,
			RomanianDefaults: true,
		},
	}
}

// Normalize fills zero values with defaults so that partial files still work.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		c.Log.Format = "json"
	}
	if c.MaxPeriodDays <= 0 {
		c.MaxPeriodDays = DefaultMaxPeriodDays
	}
	if c.ExtendedWeeks <= 0 {
		c.ExtendedWeeks = DefaultExtendedWeeks
	}
	if c.Holidays.Refresh == "" {
		c.Holidays.Refresh = DefaultHolidayCron
	}
}

// Validate reports values Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := cron.ParseStandard(c.Holidays.Refresh); err != nil {
		errs = append(errs, fmt.Errorf("holidays.refresh %q: %w", c.Holidays.Refresh, err))
	}
	if u := c.Holidays.ICSURL; u != "" &&
		!strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "webcal://") {
		errs = append(errs, fmt.Errorf("holidays.ics_url %q: unsupported scheme", u))
	}
	for activity, kinds := range c.Coefficients {
		at := academic.ActivityType(strings.ToUpper(activity))
		if !at.Valid() {
			errs = append(errs, fmt.Errorf("coefficients: unknown activity type %q", activity))
			continue
		}
		for kind, v := range kinds {
			if !academic.HourKind(strings.ToLower(kind)).Valid() {
				errs = append(errs, fmt.Errorf("coefficients.%s: unknown hour kind %q", activity, kind))
			}
			if v < 0 {
				errs = append(errs, fmt.Errorf("coefficients.%s.%s: negative value", activity, kind))
			}
		}
	}
	return errors.Join(errs...)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - A .env file in the working directory is loaded when present.
//   - If the YAML file does not exist, defaults are written to it.
//   - PLATA_* environment variables override file values.
//   - The result is normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		// Keys absent from the file keep their default, including bools.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PLATA_LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := os.LookupEnv("PLATA_DB_PATH"); ok {
		c.DatabasePath = v
	}
	if v, ok := os.LookupEnv("PLATA_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("PLATA_LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := os.LookupEnv("PLATA_HOLIDAY_ICS_URL"); ok {
		c.Holidays.ICSURL = v
	}
	if v, ok := os.LookupEnv("PLATA_MAX_PERIOD_DAYS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PLATA_MAX_PERIOD_DAYS: %w", err)
		}
		c.MaxPeriodDays = n
	}
	return nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
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

	tmp, err := os.CreateTemp(dir, ".platacuora-config-*.tmp")
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

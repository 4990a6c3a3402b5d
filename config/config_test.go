package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ULBS/platacuora-timetech-sub000/config"
)

func TestLoad_WritesDefaultsOnFirstRun(t *testing.T) {
	// GIVEN: A path with no config file
	// WHEN: Load is called
	// THEN: Defaults are returned and written with 0600 permissions

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListen, cfg.Listen)
	assert.Equal(t, config.DefaultMaxPeriodDays, cfg.MaxPeriodDays)
	assert.True(t, cfg.Holidays.RomanianDefaults)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9000"
log:
  format: pretty
coefficients:
  LR:
    course: 2.5
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, config.DefaultExtendedWeeks, cfg.ExtendedWeeks)
	assert.Equal(t, 2.5, cfg.Coefficients["LR"]["course"])
	assert.True(t, cfg.Holidays.RomanianDefaults, "absent bool keeps its default")
	assert.Equal(t, config.DefaultHolidayCron, cfg.Holidays.Refresh)
}

func TestLoad_ExplicitFalseDisablesRomanianDefaults(t *testing.T) {
	// GIVEN: A file that only sets holidays.ics_url, and one that turns defaults off
	// WHEN: Each file is loaded
	// THEN: The first keeps romanian_defaults on, the second honours false
	dir := t.TempDir()
	feedOnly := filepath.Join(dir, "feed.yaml")
	require.NoError(t, os.WriteFile(feedOnly, []byte(`
holidays:
  ics_url: "https://example.org/ro.ics"
`), 0o600))
	off := filepath.Join(dir, "off.yaml")
	require.NoError(t, os.WriteFile(off, []byte(`
holidays:
  romanian_defaults: false
`), 0o600))

	cfg, err := config.Load(feedOnly)
	require.NoError(t, err)
	assert.True(t, cfg.Holidays.RomanianDefaults)
	assert.Equal(t, "https://example.org/ro.ics", cfg.Holidays.ICSURL)

	cfg, err = config.Load(off)
	require.NoError(t, err)
	assert.False(t, cfg.Holidays.RomanianDefaults)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("PLATA_DB_PATH", ":memory:")
	t.Setenv("PLATA_MAX_PERIOD_DAYS", "31")
	t.Setenv("PLATA_HOLIDAY_ICS_URL", "webcal://example.org/ro.ics")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, 31, cfg.MaxPeriodDays)
	assert.Equal(t, "webcal://example.org/ro.ics", cfg.Holidays.ICSURL)

	t.Setenv("PLATA_MAX_PERIOD_DAYS", "many")
	_, err = config.Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*config.Config){
		"bad cron":      func(c *config.Config) { c.Holidays.Refresh = "every day" },
		"bad scheme":    func(c *config.Config) { c.Holidays.ICSURL = "ftp://example.org/ro.ics" },
		"bad activity":  func(c *config.Config) { c.Coefficients = map[string]map[string]float64{"PhD": {"course": 2}} },
		"bad kind":      func(c *config.Config) { c.Coefficients = map[string]map[string]float64{"LR": {"tutorial": 2}} },
		"negative coef": func(c *config.Config) { c.Coefficients = map[string]map[string]float64{"LR": {"course": -1}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, config.DefaultConfig().Validate())
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/influx-assist/schema"
	"github.com/TFMV/influx-assist/validator"
)

const sampleConfig = `
profiles:
  default:
    host: trino.local
    user: analyst
    catalog: influx
    schema: telemetry
  local:
    driver: trino
    dsn: http://me@localhost:8080?catalog=influx
    dialect: influxql
defaults:
  database: telemetry
  max_suggestions: 15
  cache_dir: /tmp/influx-assist
  refresh_interval: 10m
validator:
  max_time_range_days: 7
  rules:
    - code: NO_SELECT_STAR_ON_CPU
      severity: info
      message: avoid SELECT * on cpu
      when: 'hasSelect && upper contains "FROM CPU"'
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	p, err := cfg.Profile("default")
	require.NoError(t, err)
	assert.Equal(t, "trino", p.Driver)
	assert.Equal(t, string(schema.DialectInformationSchema), p.Dialect)
	assert.Equal(t, 8080, p.Port)
	assert.Equal(t, "http://analyst@trino.local:8080?catalog=influx&schema=telemetry", p.DataSourceName())

	local, err := cfg.Profile("local")
	require.NoError(t, err)
	assert.Equal(t, "http://me@localhost:8080?catalog=influx", local.DataSourceName())

	assert.Equal(t, "telemetry", cfg.Defaults.Database)
	assert.Equal(t, 15, cfg.Defaults.MaxSuggestions)
	assert.Equal(t, "table", cfg.Defaults.Format)

	interval, err := cfg.RefreshInterval()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, interval)

	dir, err := cfg.CacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/influx-assist", dir)

	opts := cfg.ValidatorOptions()
	assert.Equal(t, 7*24*time.Hour, opts.MaxTimeRange)
	require.Len(t, opts.Rules, 1)
	assert.Equal(t, string(validator.SeverityInfo), opts.Rules[0].Severity)

	_, err = validator.New(opts, nil)
	assert.NoError(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestLoadConfigSetsAppConfig(t *testing.T) {
	defer func() { AppConfig = Default() }()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	require.NoError(t, LoadConfig(path))
	assert.Len(t, AppConfig.Profiles, 2)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Empty(t, cfg.Profiles)
	assert.Equal(t, 20, cfg.Defaults.MaxSuggestions)
	assert.Equal(t, 30, cfg.Validator.MaxTimeRangeDays)
	assert.Equal(t, validator.DefaultMaxTimeRange, cfg.ValidatorOptions().MaxTimeRange)

	interval, err := cfg.RefreshInterval()
	require.NoError(t, err)
	assert.Zero(t, interval)

	dir, err := cfg.CacheDir()
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(dir, "~"))
	assert.True(t, strings.HasSuffix(dir, ".influx-assist"))
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "profiles: [", "failed to parse config"},
		{"no host", "profiles:\n  p:\n    user: me\n", "dsn or host is required"},
		{"bad dialect", "profiles:\n  p:\n    dsn: x\n    dialect: flux\n", "unknown schema dialect"},
		{"bad format", "defaults:\n  format: xml\n", "unsupported format"},
		{"bad interval", "defaults:\n  refresh_interval: often\n", "refresh_interval"},
		{"rule without when", "validator:\n  rules:\n    - code: X\n", "code and when are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestProfileNotFound(t *testing.T) {
	cfg := Default()
	_, err := cfg.Profile("nope")
	assert.ErrorContains(t, err, `profile "nope" not found`)
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/TFMV/influx-assist/schema"
	"github.com/TFMV/influx-assist/validator"
)

// Config holds the entire configuration for influx-assist.
type Config struct {
	Profiles  map[string]Profile `yaml:"profiles"`
	Defaults  Defaults           `yaml:"defaults"`
	Validator Validator          `yaml:"validator"`
}

// Profile defines how to reach the server whose schema is used for completion.
// DSN wins over the individual connection fields.
type Profile struct {
	Driver  string `yaml:"driver"`
	DSN     string `yaml:"dsn"`
	Dialect string `yaml:"dialect"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Catalog string `yaml:"catalog"`
	Schema  string `yaml:"schema"`
}

// Defaults defines assist defaults.
type Defaults struct {
	Database        string `yaml:"database"`
	MaxSuggestions  int    `yaml:"max_suggestions"`
	CacheDir        string `yaml:"cache_dir"`
	RefreshInterval string `yaml:"refresh_interval"`
	Format          string `yaml:"format"`
}

// Validator configures the query validator.
type Validator struct {
	MaxTimeRangeDays int              `yaml:"max_time_range_days"`
	Rules            []validator.Rule `yaml:"rules"`
}

const (
	defaultMaxSuggestions   = 20
	defaultMaxTimeRangeDays = 30
	defaultFormat           = "table"
	defaultDriver           = "trino"
)

// AppConfig is the configuration loaded by the CLI.
var AppConfig = Default()

// Default returns a configuration with no profiles and default settings.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// LoadConfig reads the configuration file at path into AppConfig.
func LoadConfig(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	AppConfig = *cfg
	return nil
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile)
	}
	for name, p := range c.Profiles {
		if p.Driver == "" {
			p.Driver = defaultDriver
		}
		if p.Dialect == "" && p.Driver == defaultDriver {
			p.Dialect = string(schema.DialectInformationSchema)
		}
		if p.Port == 0 && p.Host != "" {
			p.Port = 8080
		}
		c.Profiles[name] = p
	}
	if c.Defaults.MaxSuggestions == 0 {
		c.Defaults.MaxSuggestions = defaultMaxSuggestions
	}
	if c.Defaults.Format == "" {
		c.Defaults.Format = defaultFormat
	}
	if c.Defaults.CacheDir == "" {
		c.Defaults.CacheDir = "~/.influx-assist"
	}
	if c.Validator.MaxTimeRangeDays == 0 {
		c.Validator.MaxTimeRangeDays = defaultMaxTimeRangeDays
	}
}

// Validate checks the configuration for values that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range c.Profiles {
		if p.DSN == "" && p.Host == "" {
			errs = append(errs, fmt.Errorf("profile %q: dsn or host is required", name))
		}
		if _, err := schema.ParseDialect(p.Dialect); err != nil {
			errs = append(errs, fmt.Errorf("profile %q: %w", name, err))
		}
	}
	if c.Defaults.MaxSuggestions < 0 {
		errs = append(errs, errors.New("defaults.max_suggestions must not be negative"))
	}
	if c.Defaults.Format != "table" && c.Defaults.Format != "json" {
		errs = append(errs, fmt.Errorf("defaults.format: unsupported format %q", c.Defaults.Format))
	}
	if _, err := c.RefreshInterval(); err != nil {
		errs = append(errs, err)
	}
	if c.Validator.MaxTimeRangeDays < 0 {
		errs = append(errs, errors.New("validator.max_time_range_days must not be negative"))
	}
	for i, r := range c.Validator.Rules {
		if r.Code == "" || r.When == "" {
			errs = append(errs, fmt.Errorf("validator.rules[%d]: code and when are required", i))
		}
	}
	return errors.Join(errs...)
}

// Profile returns the named connection profile.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// RefreshInterval parses defaults.refresh_interval. An empty value disables
// background refresh.
func (c *Config) RefreshInterval() (time.Duration, error) {
	if c.Defaults.RefreshInterval == "" {
		return 0, nil
	}
	d, err := cast.ToDurationE(c.Defaults.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("defaults.refresh_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("defaults.refresh_interval must not be negative")
	}
	return d, nil
}

// CacheDir returns the snapshot directory with a leading ~ expanded.
func (c *Config) CacheDir() (string, error) {
	dir := c.Defaults.CacheDir
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to find home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir, nil
}

// ValidatorOptions converts the validator section into validator options.
func (c *Config) ValidatorOptions() validator.Options {
	return validator.Options{
		MaxTimeRange: time.Duration(c.Validator.MaxTimeRangeDays) * 24 * time.Hour,
		Rules:        c.Validator.Rules,
	}
}

// DataSourceName returns the DSN of the profile, building a Trino DSN from
// the individual fields when none is set.
func (p Profile) DataSourceName() string {
	if p.DSN != "" {
		return p.DSN
	}

	u := url.URL{
		Scheme: "http",
		User:   url.User(p.User),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
	}
	q := url.Values{}
	if p.Catalog != "" {
		q.Set("catalog", p.Catalog)
	}
	if p.Schema != "" {
		q.Set("schema", p.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

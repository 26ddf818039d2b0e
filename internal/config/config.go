// Package config loads the compras CLI configuration: named API profiles,
// the session store backend and the optional event and metrics sinks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/GenivalfSilva/Sistema-Compras/internal/storage"
)

// DefaultAPIURL is where the backend listens in a development setup.
const DefaultAPIURL = "http://127.0.0.1:8000/api"

type Config struct {
	CurrentProfile string              `yaml:"current_profile" mapstructure:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles" mapstructure:"profiles"`
	Defaults       *Defaults           `yaml:"defaults" mapstructure:"defaults"`
	Storage        StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Events         EventsConfig        `yaml:"events" mapstructure:"events"`
	Metrics        MetricsConfig       `yaml:"metrics" mapstructure:"metrics"`
	Logging        LoggingConfig       `yaml:"logging" mapstructure:"logging"`
	HTTP           HTTPConfig          `yaml:"http" mapstructure:"http"`

	path string
}

type Profile struct {
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
}

type Defaults struct {
	APIURL string `yaml:"api_url" mapstructure:"api_url"`
}

// StorageConfig selects where session tokens are kept between runs.
type StorageConfig struct {
	Backend  string `yaml:"backend" mapstructure:"backend"` // file, memory or redis
	Path     string `yaml:"path,omitempty" mapstructure:"path"`
	RedisURL string `yaml:"redis_url,omitempty" mapstructure:"redis_url"`
}

type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty" mapstructure:"nats_url"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty" mapstructure:"textfile"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
		Defaults:       &Defaults{APIURL: DefaultAPIURL},
		Storage:        StorageConfig{Backend: storage.BackendFile},
		Logging:        LoggingConfig{Level: "warn", Format: "text"},
		HTTP:           HTTPConfig{Timeout: 30 * time.Second},
	}
}

// Dir returns the configuration directory, $COMPRAS_CONFIG_DIR or
// ~/.compras.
func Dir() (string, error) {
	if dir := os.Getenv("COMPRAS_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".compras"), nil
}

// Load reads cfgFile, or config.yaml in Dir when cfgFile is empty, and
// applies COMPRAS_* environment overrides. A missing file yields defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("current_profile", def.CurrentProfile)
	v.SetDefault("defaults.api_url", def.Defaults.APIURL)
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("events.nats_url", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("http.timeout", def.HTTP.Timeout)

	if cfgFile == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		cfgFile = filepath.Join(dir, "config.yaml")
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COMPRAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the settings most often overridden.
	_ = v.BindEnv("defaults.api_url", "COMPRAS_API_URL", "COMPRAS_DEFAULTS_API_URL")
	_ = v.BindEnv("storage.backend", "COMPRAS_STORAGE_BACKEND")
	_ = v.BindEnv("storage.redis_url", "COMPRAS_REDIS_URL", "COMPRAS_STORAGE_REDIS_URL")
	_ = v.BindEnv("events.nats_url", "COMPRAS_NATS_URL", "COMPRAS_EVENTS_NATS_URL")
	_ = v.BindEnv("logging.level", "COMPRAS_LOG_LEVEL", "COMPRAS_LOGGING_LEVEL")

	// A missing file is fine; a file that exists but does not parse is not.
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgFile); statErr == nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	cfg := Default()
	cfg.path = cfgFile
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	if cfg.Defaults == nil {
		cfg.Defaults = &Defaults{APIURL: DefaultAPIURL}
	}
	return cfg, nil
}

// Path returns the file Save writes to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration back as YAML with owner-only permissions.
func (c *Config) Save() error {
	if c.path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(dir, "config.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}

// SetProfile stores apiURL under name, makes it current and saves.
func (c *Config) SetProfile(name, apiURL string) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = &Profile{APIURL: apiURL}
	c.CurrentProfile = name
	return c.Save()
}

func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile '%s' not found", name)
	}
	return profile, nil
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}
	delete(c.Profiles, name)
	if c.CurrentProfile == name {
		c.CurrentProfile = ""
	}
	return c.Save()
}

// ProfileName resolves an empty name to the current profile.
func (c *Config) ProfileName(name string) string {
	if name != "" {
		return name
	}
	if c.CurrentProfile != "" {
		return c.CurrentProfile
	}
	return "default"
}

// APIURL returns the API base URL for profile, falling back to the
// defaults.
func (c *Config) APIURL(profile string) string {
	if p, err := c.GetProfile(c.ProfileName(profile)); err == nil && p.APIURL != "" {
		return strings.TrimRight(p.APIURL, "/")
	}
	if c.Defaults != nil && c.Defaults.APIURL != "" {
		return strings.TrimRight(c.Defaults.APIURL, "/")
	}
	return DefaultAPIURL
}

// StorageOptions describes the session store of profile. File stores live
// next to the config file, one per profile.
func (c *Config) StorageOptions(profile string) storage.Options {
	name := c.ProfileName(profile)
	path := c.Storage.Path
	if path == "" {
		path = filepath.Join(filepath.Dir(c.path), "sessions", name+".yaml")
	}
	return storage.Options{
		Backend:  c.Storage.Backend,
		Path:     path,
		RedisURL: c.Storage.RedisURL,
		Prefix:   name,
	}
}

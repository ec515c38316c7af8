package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultOutputDir is where assets are written, relative to the project directory.
	DefaultOutputDir = "deform/static/dist"
	// DefaultBasePath prefixes every path recorded in map.json.
	DefaultBasePath = "dist"
	// DefaultComponentsDir is bower's install directory.
	DefaultComponentsDir = "bower_components"

	envPrefix  = "FLATDEPS"
	configName = "flatdeps"
)

// Config holds the settings of a bundling run.
type Config struct {
	Dir           string `mapstructure:"dir"`        // project directory holding bower.json
	Listing       string `mapstructure:"listing"`    // saved listing; bower is run when empty
	OutputDir     string `mapstructure:"output"`     // destination for map.json, js/ and css/
	BasePath      string `mapstructure:"base"`       // manifest path prefix
	Workers       int    `mapstructure:"workers"`    // parallel copies
	Bower         string `mapstructure:"bower"`      // bower command
	Offline       bool   `mapstructure:"offline"`    // pass --offline to bower
	ComponentsDir string `mapstructure:"components"` // watched by `watch`
	Verbose       bool   `mapstructure:"verbose"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir", ".")
	v.SetDefault("listing", "")
	v.SetDefault("output", DefaultOutputDir)
	v.SetDefault("base", DefaultBasePath)
	v.SetDefault("workers", 8)
	v.SetDefault("bower", "bower")
	v.SetDefault("offline", false)
	v.SetDefault("components", DefaultComponentsDir)
	v.SetDefault("verbose", false)
}

// Load reads the optional config file and environment into a Config.
// An explicitly named file must exist; the default flatdeps.yaml in the
// project directory is optional.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(v.GetString("dir"))
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolve makes relative paths relative to the project directory.
func (c *Config) resolve() {
	if c.Dir == "" {
		c.Dir = "."
	}
	c.OutputDir = c.path(c.OutputDir)
	c.ComponentsDir = c.path(c.ComponentsDir)
	c.Listing = c.path(c.Listing)
}

func (c *Config) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("invalid config: output directory is empty")
	}
	if c.BasePath == "" {
		return fmt.Errorf("invalid config: base path is empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid config: workers must be at least 1, got %d", c.Workers)
	}
	if c.Listing == "" && strings.TrimSpace(c.Bower) == "" {
		return fmt.Errorf("invalid config: either a listing file or a bower command is required")
	}
	return nil
}

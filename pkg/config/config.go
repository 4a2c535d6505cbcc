// Package config loads the compkgs configuration file.
//
// The file is TOML. Every key is optional; missing keys keep the values of
// [Default], which reproduce the tables nixpkgs maintains for the
// home-assistant package:
//
//	package_set = "home-assistant.python.pkgs"
//	nixpkgs_root = "."
//	output = "pkgs/servers/home-assistant/component-packages.nix"
//	formatter = "nixfmt"
//
//	[overrides]
//	slackclient = "slack-sdk"
//
//	[extra_dependencies]
//	conversation = ["intent"]
//
//	[version_floors]
//	gps3 = "0.33.3"
//
//	[cache]
//	backend = "redis"
//	redis_url = "redis://localhost:6379/0"
//	ttl = "24h"
//	registry_paths = ["pkgs/development/python-modules"]
//
// Entries of [overrides], [extra_dependencies] and [version_floors] are
// merged into the default tables; a key present in both takes the file's
// value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/compkgs/pkg/errors"
	"github.com/matzehuels/compkgs/pkg/registry"
)

// Config is the complete tool configuration.
type Config struct {
	PackageSet     string `toml:"package_set"`     // Attribute path of the Python package set
	LangPrefix     string `toml:"lang_prefix"`     // Display name prefix before the interpreter version
	NixpkgsRoot    string `toml:"nixpkgs_root"`    // nixpkgs checkout evaluated by nix-env and nix-instantiate
	SourceURL      string `toml:"source_url"`      // Release tarball URL template with {version}
	VersionFile    string `toml:"version_file"`    // File holding the pinned release version, relative to nixpkgs_root
	VersionPattern string `toml:"version_pattern"` // Regexp whose first group is the version
	Output         string `toml:"output"`          // Generated file, relative to nixpkgs_root
	Formatter      string `toml:"formatter"`       // Command run on the generated file; empty disables

	Overrides         map[string]string   `toml:"overrides"`          // Requirement name -> attribute
	ExtraDependencies map[string][]string `toml:"extra_dependencies"` // Component -> components loaded at runtime
	VersionFloors     map[string]string   `toml:"version_floors"`     // Attribute -> known minimum release

	Cache CacheConfig `toml:"cache"`
	Store StoreConfig `toml:"store"`
	Serve ServeConfig `toml:"serve"`
}

// CacheConfig selects the backend for registry dumps and source trees.
type CacheConfig struct {
	Backend  string        `toml:"backend"` // file, redis or none
	Dir      string        `toml:"dir"`
	TTL      time.Duration `toml:"ttl"`
	RedisURL string        `toml:"redis_url"`
	Prefix   string        `toml:"prefix"`

	// RegistryPaths are checked, relative to the nixpkgs root, before a
	// cached package set dump is reused. Any file change below them
	// invalidates the dump.
	RegistryPaths []string `toml:"registry_paths"`
}

// StoreConfig selects where reports are persisted.
type StoreConfig struct {
	Backend       string `toml:"backend"` // file, mongo or none
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// ServeConfig configures the HTTP API.
type ServeConfig struct {
	Addr    string `toml:"addr"`
	Metrics bool   `toml:"metrics"` // expose /metrics
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PackageSet:     "home-assistant.python.pkgs",
		LangPrefix:     "python",
		NixpkgsRoot:    ".",
		SourceURL:      "https://github.com/home-assistant/core/archive/{version}.tar.gz",
		VersionFile:    "pkgs/servers/home-assistant/default.nix",
		VersionPattern: `hassVersion = "([\d\.b]+)";`,
		Output:         "pkgs/servers/home-assistant/component-packages.nix",
		Formatter:      "nixfmt",
		Overrides: map[string]string{
			"fiblary3":    "fiblary3-fork", // https://github.com/home-assistant/core/issues/66466
			"HAP-python":  "hap-python",
			"ha-av":       "av",
			"numpy":       "numpy",
			"ollama-hass": "ollama",
			"paho-mqtt":   "paho-mqtt",
			"sentry-sdk":  "sentry-sdk",
			"slackclient": "slack-sdk",
			"SQLAlchemy":  "sqlalchemy",
			"tensorflow":  "tensorflow",
			"yt-dlp":      "yt-dlp",
		},
		ExtraDependencies: map[string][]string{
			"conversation":   {"intent"},
			"default_config": {"backup"},
		},
		VersionFloors: map[string]string{
			"blinkstick": "1.2.0",
			"gps3":       "0.33.3",
			"pybluez":    "0.22",
		},
		Cache: CacheConfig{
			Backend:       "file",
			TTL:           24 * time.Hour,
			Prefix:        "compkgs:",
			RegistryPaths: slices.Clone(registry.DefaultFingerprintPaths),
		},
		Store: StoreConfig{
			Backend:       "file",
			MongoDatabase: "compkgs",
		},
		Serve: ServeConfig{Addr: ":8080", Metrics: true},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/compkgs/config.toml, falling back to
// ~/.config/compkgs/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "compkgs", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "compkgs", "config.toml"), nil
}

// Load reads the file at path over [Default]. If path is empty the default
// path is tried, and a missing default file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file")
		}
		return nil, err
	}
	if err := Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode parses TOML data into cfg and validates the result. Keys absent
// from data keep their value in cfg; unknown keys are rejected.
func Decode(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown config key %q", undecoded[0].String())
	}
	return cfg.Validate()
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if err := errors.ValidateAttrPath(c.PackageSet); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "package_set")
	}
	for name, attr := range c.Overrides {
		if err := errors.ValidateAttrPath(attr); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "overrides.%s", name)
		}
	}
	for domain, deps := range c.ExtraDependencies {
		for _, dep := range deps {
			if err := errors.ValidateDomain(dep); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidConfig, err, "extra_dependencies.%s", domain)
			}
		}
	}
	re, err := regexp.Compile(c.VersionPattern)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "version_pattern")
	}
	if re.NumSubexp() < 1 {
		return errors.New(errors.ErrCodeInvalidConfig, "version_pattern needs a capture group")
	}
	switch c.Cache.Backend {
	case "", "file", "redis", "none":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend %q (available: file, redis, none)", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_url is required for the redis backend")
	}
	switch c.Store.Backend {
	case "", "file", "mongo", "none":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "store.backend %q (available: file, mongo, none)", c.Store.Backend)
	}
	if c.Store.Backend == "mongo" && c.Store.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "store.mongo_uri is required for the mongo backend")
	}
	return nil
}

// Resolve joins a path relative to NixpkgsRoot. Absolute paths are returned
// unchanged.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.NixpkgsRoot, path)
}

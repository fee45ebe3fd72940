// Package config handles the global photomend configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/photomend/internal/library"
	"github.com/matsen/photomend/internal/volume"
	"gopkg.in/yaml.v3"
)

// RuleConfig is a path-prefix relocation rule as written in config.yml.
type RuleConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// GlobalConfig represents configuration stored in ~/.config/photomend/config.yml.
type GlobalConfig struct {
	Library       string        `yaml:"library,omitempty"`
	BackupDir     string        `yaml:"backup_dir,omitempty"`
	SecurityScope string        `yaml:"security_scope,omitempty"`
	Rules         []RuleConfig  `yaml:"rules,omitempty"`
	Volumes       []volume.Info `yaml:"volumes,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "photomend"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// LibraryEnv overrides the configured library.
	LibraryEnv = "PHOTOMEND_LIBRARY"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// pathOverride replaces GlobalConfigPath when set by --config.
var pathOverride string

// SetGlobalConfigPath makes subsequent loads read path instead of the XDG location.
func SetGlobalConfigPath(path string) {
	pathOverride = path
	globalConfigCache = nil
}

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/photomend/config.yml.
func GlobalConfigPath() string {
	if pathOverride != "" {
		return ExpandPath(pathOverride)
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Library = ExpandPath(cfg.Library)
	cfg.BackupDir = ExpandPath(cfg.BackupDir)

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// SaveGlobalConfig writes cfg to the global config path, creating its directory.
func SaveGlobalConfig(cfg *GlobalConfig) error {
	path := GlobalConfigPath()
	if path == "" {
		return errors.New("cannot determine config path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	globalConfigCache = nil
	return nil
}

// ResolveLibrary picks the library to operate on: an explicit argument wins,
// then $PHOTOMEND_LIBRARY, then the configured library, then the default
// ~/Pictures/Photos Library.photoslibrary.
func ResolveLibrary(arg string) string {
	if arg != "" {
		return ExpandPath(arg)
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		return ExpandPath(env)
	}
	if cfg, err := LoadGlobalConfig(); err == nil && cfg.Library != "" {
		return cfg.Library
	}
	return library.DefaultPath()
}

// HelpfulConfigMessage returns a hint for setting a default library.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No Photos library found.

Tip: pass the library path, set $%s, or create %s:
  mkdir -p %s
  echo 'library: ~/Pictures/Photos Library.photoslibrary' > %s`,
		LibraryEnv,
		configPath,
		filepath.Dir(configPath),
		configPath)
}

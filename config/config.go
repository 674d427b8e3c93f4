package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration. The API token is never
// stored here; it comes from the MORPH_API_TOKEN environment variable only.
type Config struct {
	Endpoint            string `yaml:"endpoint,omitempty"`
	AppID               string `yaml:"app_id,omitempty"`
	DefaultOutputFormat string `yaml:"default_output_format,omitempty"`
	MaxConcurrent       int    `yaml:"max_concurrent,omitempty"`
}

// DefaultMaxConcurrent bounds simultaneous conversions unless configured.
const DefaultMaxConcurrent = 2

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".morph"
	}
	return filepath.Join(configDir, "morph")
}

// ConfigPath returns the path to the global config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".morph.yaml"
}

// ConfigFileExists returns true if the global config file exists on disk
func ConfigFileExists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

// Load loads the configuration from disk.
// It first loads the global config from the XDG config directory, then merges
// any local .morph.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	cfg := &Config{
		MaxConcurrent: DefaultMaxConcurrent,
	}

	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}

		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}
		cfg = mergeConfig(cfg, &localCfg)
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	return cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{}

	if local.Endpoint != "" {
		result.Endpoint = local.Endpoint
	} else {
		result.Endpoint = global.Endpoint
	}
	if local.AppID != "" {
		result.AppID = local.AppID
	} else {
		result.AppID = global.AppID
	}
	if local.DefaultOutputFormat != "" {
		result.DefaultOutputFormat = local.DefaultOutputFormat
	} else {
		result.DefaultOutputFormat = global.DefaultOutputFormat
	}
	if local.MaxConcurrent > 0 {
		result.MaxConcurrent = local.MaxConcurrent
	} else {
		result.MaxConcurrent = global.MaxConcurrent
	}

	return result
}

// ConfigPathInfo holds resolved config file locations
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# Morph configuration file

# Conversion API credentials. The security token is read from the
# MORPH_API_TOKEN environment variable and never stored on disk.
# app_id: your-app-id

# API endpoint (optional, defaults to the hosted service)
# endpoint: https://api.vertopal.com/v1

# Output format used when --to is not given (optional)
# default_output_format: pdf

# Maximum simultaneous conversions (optional, defaults to 2)
# max_concurrent: 2
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

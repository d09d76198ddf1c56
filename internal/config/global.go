// Package config handles the global configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in
// ~/.config/refmine/config.yml. Every field is optional; zero values
// fall back to the built-in defaults of the pipeline packages.
type GlobalConfig struct {
	// Extractor selects the default PDF text backend: "plain" or "rows".
	Extractor string `yaml:"extractor,omitempty" json:"extractor,omitempty"`
	// UserAgent overrides the download User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	// RateLimit is the download rate in requests per second.
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	// MaxAttempts is the download retry budget.
	MaxAttempts uint `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	// AuditLog is the default audit log path; a .db or .sqlite extension
	// selects the SQLite recorder.
	AuditLog string `yaml:"audit_log,omitempty" json:"audit_log,omitempty"`
	// MinPageNumber and MaxPageNumber bound the running page-number filter.
	MinPageNumber int `yaml:"min_page_number,omitempty" json:"min_page_number,omitempty"`
	MaxPageNumber int `yaml:"max_page_number,omitempty" json:"max_page_number,omitempty"`
	// MaxAppend bounds the year-seeking joiner.
	MaxAppend int `yaml:"max_append,omitempty" json:"max_append,omitempty"`
	// Placeholder is the repeated-author dash placeholder.
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	// Headings replaces the built-in reference-section heading set.
	Headings []string `yaml:"headings,omitempty" json:"headings,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "refmine"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/refmine/config.yml.
func GlobalConfigPath() string {
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

	if cfg.AuditLog != "" {
		cfg.AuditLog = ExpandTilde(cfg.AuditLog)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ExpandTilde expands a leading ~/ to the user's home directory.
func ExpandTilde(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

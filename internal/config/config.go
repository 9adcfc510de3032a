// Package config loads optional defaults for the filesearch command line.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-errors/errors"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is looked up in the home directory
const DefaultFileName = ".filesearch.yaml"

// Config holds defaults that command-line flags override
type Config struct {
	// Threads is the worker count (0 = available parallelism)
	Threads int `yaml:"threads"`

	// CaseInsensitive folds ASCII case when matching
	CaseInsensitive bool `yaml:"case_insensitive"`

	// DepthFirst switches the frontier to depth-first order
	DepthFirst bool `yaml:"depth_first"`

	// MaxDepth limits traversal depth; nil means unlimited
	MaxDepth *int `yaml:"max_depth"`

	// Exclude lists directory names that are not descended into
	Exclude []string `yaml:"exclude"`

	// ExcludeHidden skips directories whose name starts with a dot
	ExcludeHidden bool `yaml:"exclude_hidden"`

	// ExcludeCommon adds the built-in list of VCS, build and system directories
	ExcludeCommon bool `yaml:"exclude_common"`

	// Log is the session log path
	Log string `yaml:"log"`

	// ReportDir replaces the desktop as the default report location
	ReportDir string `yaml:"report_dir"`

	// Verbose enables debug diagnostics
	Verbose bool `yaml:"verbose"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{}
}

// DefaultPath returns ~/.filesearch.yaml, or "" when home is unknown
func DefaultPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultFileName)
}

// Load reads path. A missing file yields the defaults unless required.
func Load(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.WrapPrefix(err, fmt.Sprintf("invalid config path %s", path), 0)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return cfg, nil
		}
		return nil, errors.WrapPrefix(err, "failed to read config file", 0)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapPrefix(err, fmt.Sprintf("failed to parse config file %s", expanded), 0)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no flag could express
func (c *Config) Validate() error {
	if c.Threads < 0 {
		return errors.Errorf("threads must be >= 0, got %d", c.Threads)
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		return errors.Errorf("max_depth must be >= 0, got %d", *c.MaxDepth)
	}
	return nil
}

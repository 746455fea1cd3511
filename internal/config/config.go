// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Source
	Repo   string `json:"repo,omitempty"`   // Repository URL or local path to migrate
	Branch string `json:"branch,omitempty"` // Branch to check out, default main
	Token  string `json:"token,omitempty"`  // Access token for private repositories

	// Target
	TargetStack string `json:"target_stack,omitempty"` // Target platform, default java17
	JavaPackage string `json:"java_package,omitempty"` // Package for generated sources

	// Pipeline
	Workers         int  `json:"workers,omitempty"`           // Concurrent units per job
	AttemptCap      int  `json:"attempt_cap,omitempty"`       // Max attempts per retryable stage
	StageTimeoutSec int  `json:"stage_timeout_sec,omitempty"` // Per-stage timeout in seconds
	ReviewRequired  bool `json:"review_required,omitempty"`   // Pause passing units for human review

	// Behavior
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key for the translation oracle
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	JUnitJar    string `json:"junit_jar,omitempty"`    // JUnit console launcher jar for validation
	StaticOnly  bool   `json:"static_only,omitempty"`  // Validate structurally without a JDK
	Verbose     bool   `json:"verbose,omitempty"`      // Print detailed debug information

	// Server
	ListenAddr string `json:"listen_addr,omitempty"` // HTTP listen address for serve mode
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config error: 'workers' must be non-negative")
	}
	if c.AttemptCap < 0 {
		return fmt.Errorf("config error: 'attempt_cap' must be non-negative")
	}
	if c.StageTimeoutSec < 0 {
		return fmt.Errorf("config error: 'stage_timeout_sec' must be non-negative")
	}

	if c.JUnitJar != "" {
		if _, err := os.Stat(c.JUnitJar); os.IsNotExist(err) {
			return fmt.Errorf("config error: junit jar not found: %s", c.JUnitJar)
		}
	}
	if c.StaticOnly && c.JUnitJar != "" {
		return fmt.Errorf("config error: 'static_only' and 'junit_jar' are mutually exclusive")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Repo == "" {
		result.Repo = defaults.Repo
	}
	if result.Branch == "" {
		result.Branch = defaults.Branch
	}
	if result.Token == "" {
		result.Token = defaults.Token
	}
	if result.TargetStack == "" {
		result.TargetStack = defaults.TargetStack
	}
	if result.JavaPackage == "" {
		result.JavaPackage = defaults.JavaPackage
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.AttemptCap == 0 {
		result.AttemptCap = defaults.AttemptCap
	}
	if result.StageTimeoutSec == 0 {
		result.StageTimeoutSec = defaults.StageTimeoutSec
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.JUnitJar == "" {
		result.JUnitJar = defaults.JUnitJar
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}
	if !result.ReviewRequired {
		result.ReviewRequired = defaults.ReviewRequired
	}
	if !result.StaticOnly {
		result.StaticOnly = defaults.StaticOnly
	}
	if !result.Verbose {
		result.Verbose = defaults.Verbose
	}

	return result
}

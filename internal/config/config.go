// Package config provides configuration loading and persistence for botster-wrap.
//
// Configuration is loaded from:
// 1. ~/.botster_wrap/config.json (file)
// 2. Environment variables (override file values)
// 3. Command-line flags (override everything)
//
// Environment variables:
//   - BOTSTER_WRAP_COMMAND: Command to wrap when none is given
//   - BOTSTER_WRAP_SAY: Speech arguments (non-empty enables speech)
//   - BOTSTER_WRAP_LINE_WRAP: Line wrap mode (adjust | preserve)
//   - BOTSTER_WRAP_TITLE: Fallback notification title
//   - BOTSTER_WRAP_LOG_LEVEL: Log verbosity (debug | info | warn | error)
//   - BOTSTER_WRAP_CONFIG_DIR: Override config directory (for testing)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds all configuration for the wrapper.
type Config struct {
	// Command is the executable wrapped when none is named on the
	// command line.
	Command string `json:"command"`

	// Say holds arguments for the speech command, as one shell-style
	// string. Empty disables speech.
	Say string `json:"say,omitempty"`

	// LineWrap selects the output reflow mode: "preserve" or "adjust".
	LineWrap string `json:"line_wrap"`

	// Title is the fallback notification title used when the child
	// never sets a window title of its own.
	Title string `json:"title,omitempty"`

	// InputRewrite holds FROM:TO input rewrite rules.
	InputRewrite []string `json:"input_rewrite,omitempty"`

	// Quiet holds glob patterns; notifications whose body matches any
	// pattern are dropped.
	Quiet []string `json:"quiet,omitempty"`

	// DigitGuard protects a digit typed right after arrow-key
	// navigation from being read as a menu selection.
	DigitGuard bool `json:"digit_guard,omitempty"`

	// LogLevel controls diagnostic logging verbosity.
	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Command:  "claude",
		LineWrap: "preserve",
		LogLevel: "info",
	}
}

// ConfigDir returns the configuration directory path, creating it if necessary.
// Respects BOTSTER_WRAP_CONFIG_DIR environment variable for testing.
func ConfigDir() (string, error) {
	// Allow tests to override the config directory
	if testDir := os.Getenv("BOTSTER_WRAP_CONFIG_DIR"); testDir != "" {
		if err := os.MkdirAll(testDir, 0700); err != nil {
			return "", fmt.Errorf("could not create config directory: %w", err)
		}
		return testDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".botster_wrap")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}

	return dir, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LogPath returns the path to the log file, creating its directory.
func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return "", fmt.Errorf("could not create log directory: %w", err)
	}
	return filepath.Join(logDir, "botster-wrap.log"), nil
}

// Load reads configuration from file and applies environment variable overrides.
// Priority: Environment variables > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Missing or unreadable file means defaults; not an error.
	_ = cfg.loadFromFile()

	cfg.applyEnvOverrides()

	return cfg, nil
}

// loadFromFile attempts to load configuration from the config file.
func (c *Config) loadFromFile() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, c)
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() {
	if command := os.Getenv("BOTSTER_WRAP_COMMAND"); command != "" {
		c.Command = command
	}

	if say := os.Getenv("BOTSTER_WRAP_SAY"); say != "" {
		c.Say = say
	}

	if lineWrap := os.Getenv("BOTSTER_WRAP_LINE_WRAP"); lineWrap != "" {
		c.LineWrap = lineWrap
	}

	if title := os.Getenv("BOTSTER_WRAP_TITLE"); title != "" {
		c.Title = title
	}

	if logLevel := os.Getenv("BOTSTER_WRAP_LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
}

// Save writes configuration to the config file.
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}

	return nil
}

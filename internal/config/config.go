// Package config provides YAML-based configuration loading with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime settings for the server. All fields have working
// defaults except ProjectRoot, which must point at the codebase to index.
type Config struct {
	// ProjectRoot is the directory tree to index and search.
	ProjectRoot string `yaml:"project_root"`
	// DBPath is the SQLite database file. ":memory:" is accepted for
	// throwaway indexes.
	DBPath string `yaml:"db_path"`
	// ContextLines is the window size used when trimming documentation
	// chunks in search results.
	ContextLines int `yaml:"context_lines"`
	// LSPTimeoutSecs bounds each language-helper subprocess call.
	LSPTimeoutSecs int `yaml:"lsp_timeout_secs"`
	// Watch enables the filesystem watcher for background re-indexing.
	Watch bool `yaml:"watch"`
}

// Default returns a Config with everything but ProjectRoot filled in.
func Default() Config {
	return Config{
		DBPath:         ".racode/index.db",
		ContextLines:   10,
		LSPTimeoutSecs: 30,
	}
}

// Validate implements the validation contract used by Load.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ProjectRoot, validation.Required),
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.ContextLines, validation.Required, validation.Min(1), validation.Max(200)),
		validation.Field(&c.LSPTimeoutSecs, validation.Required, validation.Min(1), validation.Max(600)),
	)
}

// LSPTimeout returns the helper timeout as a duration.
func (c Config) LSPTimeout() time.Duration {
	return time.Duration(c.LSPTimeoutSecs) * time.Second
}

// Load reads a YAML config file, expanding ${VAR} environment references
// before parsing. Fields absent from the file keep the values already set
// on cfg, so callers typically pass Default() and overlay the file on top.
func Load(filename string, cfg *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

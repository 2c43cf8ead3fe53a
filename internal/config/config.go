// Package config loads and validates the optional .cmdsnap YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file at the repository root.
const FileName = ".cmdsnap"

// Default values.
const (
	DefaultSnapshotDir = "testdata/snapshots"
	DefaultBinDir      = "bin"
	DefaultLogLevel    = "info"
)

// UpdateMode controls what happens when a snapshot does not match its
// baseline.
type UpdateMode string

const (
	// UpdateAuto behaves like UpdateNew, or like UpdateNo on CI.
	UpdateAuto UpdateMode = "auto"
	// UpdateNew writes a .snap.new file for review and fails.
	UpdateNew UpdateMode = "new"
	// UpdateAlways overwrites the baseline and passes.
	UpdateAlways UpdateMode = "always"
	// UpdateNo fails without writing anything.
	UpdateNo UpdateMode = "no"
)

// Environment variables that override the file.
const (
	EnvUpdate = "CMDSNAP_UPDATE"
	EnvLog    = "CMDSNAP_LOG"
	EnvCI     = "CI"
)

// Config holds the parsed .cmdsnap configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version        int        `yaml:"version"`
	RawSnapshotDir string     `yaml:"snapshot_dir"` // relative to the test's package directory
	RawUpdate      string     `yaml:"update"`       // auto, new, always, no
	RawBinDir      string     `yaml:"bin_dir"`      // relative to the repository root
	RawLogLevel    string     `yaml:"log_level"`    // debug, info, warn, error
	Test           TestConfig `yaml:"test"`
}

// TestConfig controls how `cmdsnap test` invokes go test.
type TestConfig struct {
	Args []string `yaml:"args"` // extra flags appended to go test (e.g. -race, -count=1)
}

// SnapshotDir returns the configured snapshot directory or the default.
func (c *Config) SnapshotDir() string {
	if c.RawSnapshotDir != "" {
		return filepath.FromSlash(c.RawSnapshotDir)
	}
	return filepath.FromSlash(DefaultSnapshotDir)
}

// BinDir returns the configured binary directory or the default.
func (c *Config) BinDir() string {
	if c.RawBinDir != "" {
		return filepath.FromSlash(c.RawBinDir)
	}
	return DefaultBinDir
}

// LogLevel returns the configured log level or the default.
func (c *Config) LogLevel() string {
	if c.RawLogLevel != "" {
		return c.RawLogLevel
	}
	return DefaultLogLevel
}

// Update returns the effective update mode. CMDSNAP_UPDATE takes precedence
// over the file, and auto is resolved against CI. Load rejects an invalid
// CMDSNAP_UPDATE; Update itself falls back to the file.
func (c *Config) Update() UpdateMode {
	mode := UpdateAuto
	if c.RawUpdate != "" {
		mode = UpdateMode(c.RawUpdate)
	}
	if v := os.Getenv(EnvUpdate); v != "" {
		if m, err := ParseUpdateMode(v); err == nil {
			mode = m
		}
	}
	if mode == UpdateAuto {
		if isCI() {
			return UpdateNo
		}
		return UpdateNew
	}
	return mode
}

// ParseUpdateMode parses an update mode. The values "1", "true" and "yes"
// are accepted as aliases for always.
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch m := UpdateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case UpdateAuto, UpdateNew, UpdateAlways, UpdateNo:
		return m, nil
	case "1", "true", "yes":
		return UpdateAlways, nil
	case "0", "false":
		return UpdateNo, nil
	default:
		return "", fmt.Errorf("invalid update mode %q (want auto, new, always or no)", s)
	}
}

func isCI() bool {
	v := os.Getenv(EnvCI)
	return v != "" && v != "0" && v != "false"
}

// Validate reports a descriptive error for invalid values.
func (c *Config) Validate() error {
	if c.RawUpdate != "" {
		if _, err := ParseUpdateMode(c.RawUpdate); err != nil {
			return err
		}
	}
	switch c.RawLogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q (want debug, info, warn or error)", c.RawLogLevel)
	}
	if filepath.IsAbs(c.RawSnapshotDir) {
		return fmt.Errorf("snapshot_dir %q must be relative", c.RawSnapshotDir)
	}
	return nil
}

// ValidateEnv reports an invalid CMDSNAP_UPDATE.
func ValidateEnv() error {
	if v := os.Getenv(EnvUpdate); v != "" {
		if _, err := ParseUpdateMode(v); err != nil {
			return fmt.Errorf("%s: %w", EnvUpdate, err)
		}
	}
	return nil
}

// LoadResult holds the parsed config and the discovered repository root.
type LoadResult struct {
	Config   *Config
	RepoRoot string // directory containing go.mod; falls back to workspace
}

// Load reads the .cmdsnap file from the repository root.
// The repository root is discovered by walking upward from workspace
// looking for go.mod. If no .cmdsnap file exists, a default Config is returned.
// The environment overrides are validated alongside the file.
func Load(workspace string) (*LoadResult, error) {
	if err := ValidateEnv(); err != nil {
		return nil, err
	}
	root, err := FindRepoRoot(workspace)
	if err != nil {
		// No go.mod found; use workspace as root.
		root = workspace
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &LoadResult{Config: &Config{}, RepoRoot: root}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", FileName, err)
	}
	return &LoadResult{Config: cfg, RepoRoot: root}, nil
}

// FindRepoRoot walks upward from dir looking for a directory containing go.mod.
func FindRepoRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}

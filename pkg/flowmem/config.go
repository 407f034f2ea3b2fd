package flowmem

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ConfigFromEnv.
const (
	// EnvSwarmPath points at the agent swarm root; memory partitions live
	// in its logs/ subdirectory.
	EnvSwarmPath = "AGENT_SWARM_PATH"

	// EnvSpecHome overrides the spec tool home directory.
	EnvSpecHome = "CODEX_SPEC_TOOL_HOME"

	// EnvTracePath enables the mutation trace log when set.
	EnvTracePath = "FLOWMEM_TRACE_PATH"
)

// Config holds explicit construction-time configuration. Business logic
// never consults the environment; all ambient lookup happens here.
type Config struct {
	// LogsDir is the directory of per-repository .jsonl partition files.
	LogsDir string `yaml:"logs_dir"`

	// SpecHome is the spec tool home holding snapshots/, clarifications/,
	// logs/, and reports/.
	SpecHome string `yaml:"spec_home"`

	// TracePath, when non-empty, receives JSONL mutation traces.
	TracePath string `yaml:"trace_path"`

	// Logger receives recovered parse errors and skipped files. Nil
	// discards everything.
	Logger *slog.Logger `yaml:"-"`
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// defaultSpecHome is ~/.codex/extensions/spec-tool, the capture tool's
// install location.
func defaultSpecHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".codex", "extensions", "spec-tool")
	}
	return filepath.Join(home, ".codex", "extensions", "spec-tool")
}

// ConfigFromEnv builds a Config from the conventional environment
// variables, falling back to a logs/ directory under the working directory
// when AGENT_SWARM_PATH is unset.
func ConfigFromEnv() Config {
	logsDir := "logs"
	if root := os.Getenv(EnvSwarmPath); root != "" {
		logsDir = filepath.Join(root, "logs")
	}
	return Config{
		LogsDir:   logsDir,
		SpecHome:  envStr(EnvSpecHome, defaultSpecHome()),
		TracePath: os.Getenv(EnvTracePath),
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays non-empty fields of other onto c and returns the result.
// Used to let a config file override environment defaults.
func (c Config) Merge(other Config) Config {
	if other.LogsDir != "" {
		c.LogsDir = other.LogsDir
	}
	if other.SpecHome != "" {
		c.SpecHome = other.SpecHome
	}
	if other.TracePath != "" {
		c.TracePath = other.TracePath
	}
	if other.Logger != nil {
		c.Logger = other.Logger
	}
	return c
}

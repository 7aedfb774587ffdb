package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueSource records where a resolved setting came from
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
)

// Environment overrides
const (
	EnvGroupField = "CURATE_GROUP_FIELD"
	EnvStrategy   = "CURATE_STRATEGY"
	EnvLogLevel   = "CURATE_LOG_LEVEL"
)

// ResolvedValue is a setting together with its origin
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions holds the inputs that take precedence over the config file
type ResolveOptions struct {
	ConfigPath  string
	CLIStrategy string
	CLILogLevel string
}

// ResolvedConfig holds the settings of the curate command
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	GroupField ResolvedValue `json:"group_field"`
	Strategy   ResolvedValue `json:"strategy"`
	LogLevel   ResolvedValue `json:"log_level"`
}

type fileConfig struct {
	GroupField string `yaml:"group_field"`
	Wizard     struct {
		Strategy string `yaml:"strategy"`
	} `yaml:"wizard"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultConfigPath returns ~/.curate/config.yaml
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".curate", "config.yaml")
}

// Resolve merges defaults, the config file, the environment and CLI flags, in that
// order of increasing precedence. A missing config file is not an error.
func Resolve(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		GroupField: ResolvedValue{Value: "group", Source: SourceDefault, From: "built-in default"},
		Strategy:   ResolvedValue{Value: "best_quality", Source: SourceDefault, From: "built-in default"},
		LogLevel:   ResolvedValue{Value: "info", Source: SourceDefault, From: "built-in default"},
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}
	if cfg != nil {
		apply(&out.GroupField, cfg.GroupField, SourceConfig, path)
		apply(&out.Strategy, cfg.Wizard.Strategy, SourceConfig, path)
		apply(&out.LogLevel, cfg.Log.Level, SourceConfig, path)
	}

	applyEnv(&out.GroupField, EnvGroupField)
	applyEnv(&out.Strategy, EnvStrategy)
	applyEnv(&out.LogLevel, EnvLogLevel)

	apply(&out.Strategy, opts.CLIStrategy, SourceCLI, "--strategy")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	return out, nil
}

// SlogLevel parses the resolved log level
func (r ResolvedConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(r.LogLevel.Value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("failed to parse log level from %s: %w", r.LogLevel.From, err)
	}
	return level, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	apply(dst, os.Getenv(envKey), SourceEnv, envKey)
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

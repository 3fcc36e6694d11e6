package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/shellpilot/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Models        ModelsConfig   `mapstructure:"models" yaml:"models"`
	Service       ServiceConfig  `mapstructure:"service" yaml:"service"`
	Terminal      TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ModelsConfig controls the provider and default LLM model.
type ModelsConfig struct {
	Provider      string   `mapstructure:"provider" yaml:"provider"`
	Default       string   `mapstructure:"default" yaml:"default"`
	Allowed       []string `mapstructure:"allowed" yaml:"allowed"`
	ContextWindow int      `mapstructure:"context_window" yaml:"context_window"`
}

// ServiceConfig controls core service behavior.
type ServiceConfig struct {
	MaxSteps              int `mapstructure:"max_steps" yaml:"max_steps"`
	CommandTimeoutSeconds int `mapstructure:"command_timeout_seconds" yaml:"command_timeout_seconds"`
	HistoryMax            int `mapstructure:"history_max" yaml:"history_max"`
	PersistDebounceMillis int `mapstructure:"persist_debounce_ms" yaml:"persist_debounce_ms"`
}

// TerminalConfig configures the hosted shell.
type TerminalConfig struct {
	Shell           string `mapstructure:"shell" yaml:"shell"`
	Workdir         string `mapstructure:"workdir" yaml:"workdir"`
	ScrollbackBytes int    `mapstructure:"scrollback_bytes" yaml:"scrollback_bytes"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".shellpilot", "state"),
		Models: ModelsConfig{
			Provider:      "openai",
			Default:       "gpt-5.2",
			Allowed:       []string{"gpt-5.2", "gpt-5.1", "gpt-5.1-mini"},
			ContextWindow: schema.DefaultContextWindow,
		},
		Service: ServiceConfig{
			MaxSteps:              25,
			CommandTimeoutSeconds: int(schema.DefaultCommandTimeout.Seconds()),
			HistoryMax:            schema.DefaultHistoryMax,
			PersistDebounceMillis: int(schema.DefaultPersistDebounce.Milliseconds()),
		},
		Terminal: TerminalConfig{
			Shell:           "",
			Workdir:         "",
			ScrollbackBytes: 256 * 1024,
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".shellpilot", "config.yaml"), nil
}

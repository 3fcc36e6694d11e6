package schema

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	// StateDir enables persistent thread snapshots when non-empty.
	StateDir string
	// Provider and DefaultModel seed ModelConfig for runs that omit one.
	Provider     string
	DefaultModel ModelID
	// ContextWindow is the token budget before summarization, per session.
	ContextWindow int
	// MaxSteps bounds the model driver's tool-calling loop.
	MaxSteps int
	// CommandTimeout bounds each synchronous tool command.
	CommandTimeout time.Duration
	// HistoryMax caps the per-session command history.
	HistoryMax int
	// PersistDebounce is the quiet period before a thread snapshot flush.
	PersistDebounce time.Duration
	// DisableAuditLogging disables audit trail debug logs for tool commands.
	DisableAuditLogging bool
}

// DefaultContextWindow is the default per-session context budget in tokens.
const DefaultContextWindow = 4000

// DefaultCommandTimeout bounds synchronous tool commands.
const DefaultCommandTimeout = 30 * time.Second

// DefaultHistoryMax is the default per-session command history limit.
const DefaultHistoryMax = 200

// DefaultPersistDebounce is the default snapshot flush quiet period.
const DefaultPersistDebounce = 500 * time.Millisecond

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".shellpilot", "state")
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = ModelID("gpt-5.2")
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 25
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if cfg.PersistDebounce <= 0 {
		cfg.PersistDebounce = DefaultPersistDebounce
	}
	if cfg.ContextWindow < 100 {
		return ServiceConfig{}, errors.New("context window must be at least 100 tokens")
	}
	return cfg, nil
}

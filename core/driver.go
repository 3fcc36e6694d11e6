package core

import (
	"context"

	"pkt.systems/shellpilot/schema"
)

// Driver is the model backend running the reasoning/tool loop. The driver
// owns the conversation with the model; the service owns state, gating, and
// the terminal.
type Driver interface {
	RunAgent(ctx context.Context, req DriverRequest) (DriverResult, error)
	SummarizeContext(ctx context.Context, req SummarizeRequest) (string, error)
}

// DriverRequest carries one run's inputs and the callbacks the driver uses
// to reach back into the orchestrator.
type DriverRequest struct {
	SessionID       schema.SessionID
	Prompt          string
	Model           schema.ModelConfig
	ThinkingEnabled bool
	MaxSteps        int

	// Execute runs a tool command through the permission gate and returns
	// its observable output. A permission denial or an abort terminates the
	// loop via the returned error.
	Execute func(ctx context.Context, command string) (string, error)
	// WriteOnly sends raw input to the terminal without waiting for output.
	WriteOnly func(ctx context.Context, input string) error
	// OnStep reports model activity for thread assembly.
	OnStep func(sig StepSignal)
}

// DriverResult is the run's conclusion when the loop ends without error.
type DriverResult struct {
	Success bool
	Message string
}

// SummarizeRequest asks the driver to compress prior terminal context.
type SummarizeRequest struct {
	SessionID schema.SessionID
	Model     schema.ModelConfig
	Text      string
}

// StepSignal is one unit of model activity reported through OnStep.
// StepThinking toggles the session's thinking flag without appending;
// StepStreaming coalesces in place; StepThought finalizes a trailing
// streaming entry.
type StepSignal struct {
	Kind   schema.StepKind
	Output string
}

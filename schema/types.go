package schema

// SessionID identifies a terminal session.
type SessionID string

// ModelID identifies an LLM model.
type ModelID string

// StepKind classifies a single thread step.
type StepKind string

const (
	// StepThinking is a transient marker while the model is reasoning.
	StepThinking StepKind = "thinking"
	// StepStreaming is an evolving reasoning entry that coalesces in place.
	StepStreaming StepKind = "streaming"
	// StepThought is a finalized reasoning entry.
	StepThought StepKind = "thought"
	// StepExecuting records a command the model is about to run.
	StepExecuting StepKind = "executing"
	// StepExecuted records the output of a completed command.
	StepExecuted StepKind = "executed"
	// StepQuestion records a question the model asked the user.
	StepQuestion StepKind = "question"
	// StepDone records a successful run conclusion.
	StepDone StepKind = "done"
	// StepFailed records an unsuccessful run conclusion.
	StepFailed StepKind = "failed"
	// StepError records an orchestration failure or an abort.
	StepError StepKind = "error"
	// StepSeparator marks a run boundary within a persisted thread.
	StepSeparator StepKind = "separator"
)

// AgentStep is one emitted unit of model or tool activity.
type AgentStep struct {
	Kind   StepKind `json:"kind"`
	Output string   `json:"output"`
}

// TermState is the interrupt-safety verdict for a terminal's current output.
type TermState string

const (
	// TermIdle means a shell prompt is visible and input is safe.
	TermIdle TermState = "idle"
	// TermServer means a long-lived server/listener appears to be running.
	TermServer TermState = "server"
	// TermBusy means a foreground process is (or may be) running.
	TermBusy TermState = "busy"
	// TermInputNeeded means a program is waiting for interactive input.
	TermInputNeeded TermState = "input_needed"
)

// QueueItemKind distinguishes queued terminal commands from queued prompts.
type QueueItemKind string

const (
	// QueueCommand is raw input destined for the terminal.
	QueueCommand QueueItemKind = "command"
	// QueueAgent is a task prompt destined for StartRun.
	QueueAgent QueueItemKind = "agent"
)

// QueueItem is one deferred input awaiting dispatch.
type QueueItem struct {
	ID      string        `json:"id"`
	Kind    QueueItemKind `json:"kind"`
	Content string        `json:"content"`
}

// PermissionDecision is the user's answer to a pending permission request.
type PermissionDecision string

const (
	// DecisionAllow approves the pending command once.
	DecisionAllow PermissionDecision = "allow"
	// DecisionAlwaysAllow approves and suppresses future prompts this session.
	DecisionAlwaysAllow PermissionDecision = "always_allow"
	// DecisionDeny rejects the pending command.
	DecisionDeny PermissionDecision = "deny"
)

// ModelConfig carries the model settings for a run. Zero values fall back
// to the service defaults.
type ModelConfig struct {
	Provider      string  `json:"provider,omitempty"`
	Model         ModelID `json:"model,omitempty"`
	ContextWindow int     `json:"context_window,omitempty"`
	MaxSteps      int     `json:"max_steps,omitempty"`
}

// AgentSnapshot is a transport-friendly view of a session's agent state.
type AgentSnapshot struct {
	SessionID        SessionID   `json:"session_id"`
	Steps            []AgentStep `json:"steps"`
	Running          bool        `json:"running"`
	Thinking         bool        `json:"thinking"`
	PendingCommand   string      `json:"pending_command,omitempty"`
	PendingDangerous bool        `json:"pending_dangerous,omitempty"`
	ConfirmArmed     bool        `json:"confirm_armed,omitempty"`
	AlwaysAllow      bool        `json:"always_allow,omitempty"`
	OverlayVisible   bool        `json:"overlay_visible"`
	ThinkingEnabled  bool        `json:"thinking_enabled"`
	Summarized       bool        `json:"summarized,omitempty"`
	Queued           []QueueItem `json:"queued,omitempty"`
}

// ExecResult is the outcome of a synchronous tool command.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// AbortedMessage is the fixed text of the error step appended by StopRun.
// The run loop uses it to distinguish the abort path from driver failures.
const AbortedMessage = "Aborted by user"

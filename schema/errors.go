package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidSession indicates an invalid session identifier.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionNotFound indicates a requested session has no state.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmptyPrompt indicates the prompt was empty.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrNoActiveRun indicates no run is active for the session.
	ErrNoActiveRun = errors.New("no active run")
	// ErrNoPendingPermission indicates no permission decision is outstanding.
	ErrNoPendingPermission = errors.New("no pending permission")
	// ErrAlwaysAllowDangerous indicates always-allow was requested for a
	// command flagged dangerous.
	ErrAlwaysAllowDangerous = errors.New("always-allow is not available for dangerous commands")
	// ErrInvalidDecision indicates an unknown permission decision.
	ErrInvalidDecision = errors.New("invalid permission decision")
	// ErrPermissionDenied indicates the user denied a tool command.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAborted indicates the run was stopped by the user.
	ErrAborted = errors.New("run aborted")
	// ErrCommandTimeout indicates a tool command exceeded its deadline.
	ErrCommandTimeout = errors.New("command timed out")
	// ErrDriverUnavailable indicates no model driver is configured.
	ErrDriverUnavailable = errors.New("model driver not configured")
	// ErrTerminalUnavailable indicates no terminal capability is configured.
	ErrTerminalUnavailable = errors.New("terminal not configured")
	// ErrQueueItemNotFound indicates a queued item could not be withdrawn.
	ErrQueueItemNotFound = errors.New("queued item not found")
)

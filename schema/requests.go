package schema

// StartRunRequest starts (or queues) an agent run for a session.
type StartRunRequest struct {
	SessionID SessionID
	Prompt    string
	// Model overrides the service defaults when any field is set.
	Model ModelConfig
	// Workdir is the session's current working directory, for prompt context.
	Workdir string
}

// StartRunResponse reports whether the run started or was queued.
type StartRunResponse struct {
	Queued bool
	Item   QueueItem
	State  AgentSnapshot
}

// StopRunRequest aborts the session's active run.
type StopRunRequest struct {
	SessionID SessionID
}

// StopRunResponse returns the post-abort state.
type StopRunResponse struct {
	State AgentSnapshot
}

// ResolvePermissionRequest answers the session's pending permission request.
type ResolvePermissionRequest struct {
	SessionID SessionID
	Decision  PermissionDecision
}

// ResolvePermissionResponse reports the decision outcome. Armed means a
// dangerous command now awaits its second confirmation.
type ResolvePermissionResponse struct {
	Allowed bool
	Armed   bool
}

// QueueInputRequest defers input for dispatch after the active run.
type QueueInputRequest struct {
	SessionID SessionID
	Kind      QueueItemKind
	Content   string
}

// QueueInputResponse returns the queued item.
type QueueInputResponse struct {
	Item     QueueItem
	Deferred bool
}

// WithdrawQueuedRequest removes a queued item before dispatch.
type WithdrawQueuedRequest struct {
	SessionID SessionID
	ItemID    string
}

// WithdrawQueuedResponse returns the remaining queue.
type WithdrawQueuedResponse struct {
	Items []QueueItem
}

// ListQueueRequest lists the session's queued items.
type ListQueueRequest struct {
	SessionID SessionID
}

// ListQueueResponse returns queued items in dispatch order.
type ListQueueResponse struct {
	Items []QueueItem
}

// GetStateRequest fetches the session's agent state snapshot.
type GetStateRequest struct {
	SessionID SessionID
}

// GetStateResponse returns the snapshot.
type GetStateResponse struct {
	State AgentSnapshot
}

// SetThinkingEnabledRequest toggles extended reasoning for future runs.
type SetThinkingEnabledRequest struct {
	SessionID SessionID
	Enabled   bool
}

// SetThinkingEnabledResponse returns the updated state.
type SetThinkingEnabledResponse struct {
	State AgentSnapshot
}

// SetOverlayVisibleRequest toggles the presentation overlay flag.
type SetOverlayVisibleRequest struct {
	SessionID SessionID
	Visible   bool
}

// SetOverlayVisibleResponse returns the updated state.
type SetOverlayVisibleResponse struct {
	State AgentSnapshot
}

// ResetContextRequest discards the stored summary, reverting to raw context.
type ResetContextRequest struct {
	SessionID SessionID
}

// ResetContextResponse is empty.
type ResetContextResponse struct{}

// ClearContextRequest discards the summary, the thread, and the underlying
// terminal history.
type ClearContextRequest struct {
	SessionID SessionID
}

// ClearContextResponse is empty.
type ClearContextResponse struct{}

// CloseSessionRequest deletes the session's agent state and aborts its token.
type CloseSessionRequest struct {
	SessionID SessionID
}

// CloseSessionResponse is empty.
type CloseSessionResponse struct{}

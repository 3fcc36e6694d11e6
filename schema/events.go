package schema

// StepEvent announces an appended or coalesced thread step.
type StepEvent struct {
	SessionID SessionID `json:"session_id"`
	Index     int       `json:"index"`
	Step      AgentStep `json:"step"`
	// Replace is true when the step at Index was rewritten in place.
	Replace bool `json:"replace,omitempty"`
}

// StateEvent announces a change to a session's agent state flags.
type StateEvent struct {
	SessionID SessionID     `json:"session_id"`
	State     AgentSnapshot `json:"state"`
}

// PermissionEvent announces an outstanding permission decision. Confirm is
// true for the second stage of a dangerous command's double confirmation.
type PermissionEvent struct {
	SessionID SessionID `json:"session_id"`
	Command   string    `json:"command"`
	Dangerous bool      `json:"dangerous,omitempty"`
	Confirm   bool      `json:"confirm,omitempty"`
}

// QueueEvent announces a change to a session's input queue.
type QueueEvent struct {
	SessionID SessionID   `json:"session_id"`
	Items     []QueueItem `json:"items"`
}

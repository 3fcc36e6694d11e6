package core

import (
	"context"

	"pkt.systems/shellpilot/schema"
)

// Terminal is the capability the orchestrator uses to reach the user's
// terminal session. Write is fire-and-forget raw input; Exec runs one
// command synchronously and captures its outcome; History returns the raw
// scrollback for context assembly.
type Terminal interface {
	Write(ctx context.Context, sessionID schema.SessionID, input string) error
	Exec(ctx context.Context, sessionID schema.SessionID, command string) (schema.ExecResult, error)
	History(sessionID schema.SessionID) string
}

// HistoryClearer is an optional Terminal capability used by ClearContext.
type HistoryClearer interface {
	ClearHistory(sessionID schema.SessionID)
}

// SessionCloser is an optional Terminal capability used by CloseSession.
type SessionCloser interface {
	CloseSession(sessionID schema.SessionID)
}

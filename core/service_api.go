package core

import (
	"context"

	"pkt.systems/shellpilot/schema"
)

// Service is the transport-agnostic API for driving one agent run per
// terminal session.
type Service interface {
	StartRun(ctx context.Context, req schema.StartRunRequest) (schema.StartRunResponse, error)
	StopRun(ctx context.Context, req schema.StopRunRequest) (schema.StopRunResponse, error)
	ResolvePermission(ctx context.Context, req schema.ResolvePermissionRequest) (schema.ResolvePermissionResponse, error)
	QueueInput(ctx context.Context, req schema.QueueInputRequest) (schema.QueueInputResponse, error)
	WithdrawQueued(ctx context.Context, req schema.WithdrawQueuedRequest) (schema.WithdrawQueuedResponse, error)
	ListQueue(ctx context.Context, req schema.ListQueueRequest) (schema.ListQueueResponse, error)
	GetState(ctx context.Context, req schema.GetStateRequest) (schema.GetStateResponse, error)
	SetThinkingEnabled(ctx context.Context, req schema.SetThinkingEnabledRequest) (schema.SetThinkingEnabledResponse, error)
	SetOverlayVisible(ctx context.Context, req schema.SetOverlayVisibleRequest) (schema.SetOverlayVisibleResponse, error)
	ResetContext(ctx context.Context, req schema.ResetContextRequest) (schema.ResetContextResponse, error)
	ClearContext(ctx context.Context, req schema.ClearContextRequest) (schema.ClearContextResponse, error)
	CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error)
}

package core

import "pkt.systems/shellpilot/schema"

// EventSink receives UI-facing events emitted by the core service.
type EventSink interface {
	OnStep(event schema.StepEvent)
	OnState(event schema.StateEvent)
	OnPermission(event schema.PermissionEvent)
	OnQueue(event schema.QueueEvent)
}

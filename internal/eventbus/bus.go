// Package eventbus fans core service events out to per-session subscribers
// over bounded channels. Slow subscribers drop events instead of blocking
// the service.
package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/shellpilot/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventStep carries an appended or rewritten thread step.
	EventStep EventType = "step"
	// EventState carries a session state snapshot.
	EventState EventType = "state"
	// EventPermission carries an outstanding permission request.
	EventPermission EventType = "permission"
	// EventQueue carries the session's queued input items.
	EventQueue EventType = "queue"
)

// Event represents a UI-facing event emitted by the core service.
type Event struct {
	Type       EventType
	Step       schema.StepEvent
	State      schema.StateEvent
	Permission schema.PermissionEvent
	Queue      schema.QueueEvent
}

// Bus fans events out to per-session subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.SessionID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.SessionID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the session and returns a channel
// plus a cancel func.
func (b *Bus) Subscribe(sessionID schema.SessionID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	if sessionSubs == nil {
		sessionSubs = make(map[chan Event]struct{})
		b.subs[sessionID] = sessionSubs
	}
	sessionSubs[ch] = struct{}{}
	count := len(sessionSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("session", sessionID).Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		if subs := b.subs[sessionID]; subs != nil {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, sessionID)
			}
		}
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.With("session", sessionID).Debug("eventbus unsubscribe")
		}
	}
}

// OnStep publishes a step event.
func (b *Bus) OnStep(event schema.StepEvent) {
	b.publish(event.SessionID, Event{Type: EventStep, Step: event})
}

// OnState publishes a state event.
func (b *Bus) OnState(event schema.StateEvent) {
	b.publish(event.SessionID, Event{Type: EventState, State: event})
}

// OnPermission publishes a permission event.
func (b *Bus) OnPermission(event schema.PermissionEvent) {
	b.publish(event.SessionID, Event{Type: EventPermission, Permission: event})
}

// OnQueue publishes a queue event.
func (b *Bus) OnQueue(event schema.QueueEvent) {
	b.publish(event.SessionID, Event{Type: EventQueue, Queue: event})
}

func (b *Bus) publish(sessionID schema.SessionID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	sessionSubs := b.subs[sessionID]
	subs := make([]chan Event, 0, len(sessionSubs))
	for sub := range sessionSubs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.With("session", sessionID).Trace("eventbus dropped", "count", dropped)
	}
}

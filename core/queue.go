package core

import (
	"context"
	"strings"

	"pkt.systems/shellpilot/internal/logx"
	"pkt.systems/shellpilot/schema"
)

func (s *service) QueueInput(ctx context.Context, req schema.QueueInputRequest) (schema.QueueInputResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.QueueInputResponse{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return schema.QueueInputResponse{}, schema.ErrInvalidRequest
	}
	kind := req.Kind
	if kind == "" {
		kind = schema.QueueCommand
	}
	if kind != schema.QueueCommand && kind != schema.QueueAgent {
		return schema.QueueInputResponse{}, schema.ErrInvalidRequest
	}
	log := logx.WithSession(ctx, sessionID)
	item := schema.QueueItem{ID: newID(), Kind: kind, Content: content}

	s.mu.Lock()
	st := s.getOrCreateStateLocked(sessionID)
	if st.running {
		st.queue = append(st.queue, item)
		items := append([]schema.QueueItem(nil), st.queue...)
		s.mu.Unlock()
		s.emitQueue(sessionID, items)
		log.Debug("service input queued", "item", item.ID, "kind", kind, "depth", len(items))
		return schema.QueueInputResponse{Item: item, Deferred: true}, nil
	}
	s.mu.Unlock()

	if err := s.dispatchItem(ctx, sessionID, item); err != nil {
		log.Warn("service input dispatch failed", "item", item.ID, "err", err)
		return schema.QueueInputResponse{}, err
	}
	log.Debug("service input dispatched", "item", item.ID, "kind", kind)
	return schema.QueueInputResponse{Item: item}, nil
}

func (s *service) WithdrawQueued(ctx context.Context, req schema.WithdrawQueuedRequest) (schema.WithdrawQueuedResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.WithdrawQueuedResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return schema.WithdrawQueuedResponse{}, schema.ErrSessionNotFound
	}
	found := false
	remaining := st.queue[:0]
	for _, item := range st.queue {
		if item.ID == req.ItemID {
			found = true
			continue
		}
		remaining = append(remaining, item)
	}
	st.queue = remaining
	items := append([]schema.QueueItem(nil), st.queue...)
	s.mu.Unlock()
	if !found {
		return schema.WithdrawQueuedResponse{}, schema.ErrQueueItemNotFound
	}
	s.emitQueue(sessionID, items)
	log.Debug("service queued item withdrawn", "item", req.ItemID)
	return schema.WithdrawQueuedResponse{Items: items}, nil
}

func (s *service) ListQueue(ctx context.Context, req schema.ListQueueRequest) (schema.ListQueueResponse, error) {
	_ = ctx
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.ListQueueResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateStateLocked(sessionID)
	return schema.ListQueueResponse{Items: append([]schema.QueueItem(nil), st.queue...)}, nil
}

// drainQueue dispatches queued items in FIFO order after a run ends. An
// agent item restarts a run, which stops the drain; remaining items wait
// for the next running→false transition.
func (s *service) drainQueue(ctx context.Context, sessionID schema.SessionID) {
	log := logx.WithSession(ctx, sessionID)
	// Dispatch must not inherit the finished run's cancellation.
	ctx, cancel := detachRunContext(ctx)
	defer cancel()
	for {
		s.mu.Lock()
		st := s.sessions[sessionID]
		if st == nil || st.running || len(st.queue) == 0 {
			s.mu.Unlock()
			return
		}
		item := st.queue[0]
		st.queue = append([]schema.QueueItem(nil), st.queue[1:]...)
		items := append([]schema.QueueItem(nil), st.queue...)
		s.mu.Unlock()

		s.emitQueue(sessionID, items)
		if err := s.dispatchItem(ctx, sessionID, item); err != nil {
			log.Warn("service queue dispatch failed", "item", item.ID, "err", err)
		}
	}
}

// dispatchItem routes one queued item: commands go straight to the
// terminal, agent prompts start a run.
func (s *service) dispatchItem(ctx context.Context, sessionID schema.SessionID, item schema.QueueItem) error {
	switch item.Kind {
	case schema.QueueAgent:
		_, err := s.StartRun(ctx, schema.StartRunRequest{SessionID: sessionID, Prompt: item.Content})
		return err
	default:
		if s.term == nil {
			return schema.ErrTerminalUnavailable
		}
		return s.term.Write(ctx, sessionID, item.Content+"\n")
	}
}

package core

import (
	"context"
	"sync"

	"pkt.systems/shellpilot/internal/logx"
	"pkt.systems/shellpilot/schema"
)

// permissionRequest is one outstanding gate decision. The resolver fires
// exactly once no matter how many paths race to answer it.
type permissionRequest struct {
	command   string
	dangerous bool
	once      sync.Once
	ch        chan bool
}

func newPermissionRequest(command string, dangerous bool) *permissionRequest {
	return &permissionRequest{
		command:   command,
		dangerous: dangerous,
		ch:        make(chan bool, 1),
	}
}

func (p *permissionRequest) resolve(allowed bool) {
	p.once.Do(func() {
		p.ch <- allowed
	})
}

// requestPermission blocks the tool loop until the user decides, the run is
// cancelled, or the session's always-allow waiver applies. Dangerous
// commands never ride the waiver.
func (s *service) requestPermission(ctx context.Context, sessionID schema.SessionID, command string, dangerous bool) (bool, error) {
	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || st.aborted {
		s.mu.Unlock()
		return false, schema.ErrAborted
	}
	if st.alwaysAllow && !dangerous {
		s.mu.Unlock()
		return true, nil
	}
	pending := newPermissionRequest(command, dangerous)
	st.pending = pending
	st.confirmArmed = false
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()

	s.emitPermission(schema.PermissionEvent{SessionID: sessionID, Command: command, Dangerous: dangerous})
	s.emitState(snapshot)

	var allowed bool
	select {
	case allowed = <-pending.ch:
	case <-ctx.Done():
		s.clearPending(sessionID, pending)
		return false, ctx.Err()
	}
	s.clearPending(sessionID, pending)
	return allowed, nil
}

// clearPending removes the request from the session slot if it is still the
// outstanding one; StopRun and ResolvePermission may have cleared it first.
func (s *service) clearPending(sessionID schema.SessionID, pending *permissionRequest) {
	s.mu.Lock()
	st := s.sessions[sessionID]
	cleared := false
	if st != nil && st.pending == pending {
		st.pending = nil
		st.confirmArmed = false
		cleared = true
	}
	var snapshot schema.AgentSnapshot
	if cleared {
		snapshot = s.snapshotLocked(st)
	}
	s.mu.Unlock()
	if cleared {
		s.emitState(snapshot)
	}
}

func (s *service) ResolvePermission(ctx context.Context, req schema.ResolvePermissionRequest) (schema.ResolvePermissionResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.ResolvePermissionResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || st.pending == nil {
		s.mu.Unlock()
		return schema.ResolvePermissionResponse{}, schema.ErrNoPendingPermission
	}
	pending := st.pending

	switch req.Decision {
	case schema.DecisionDeny:
		st.pending = nil
		st.confirmArmed = false
		snapshot := s.snapshotLocked(st)
		s.mu.Unlock()
		pending.resolve(false)
		s.emitState(snapshot)
		log.Info("service permission denied", "command", pending.command)
		return schema.ResolvePermissionResponse{}, nil

	case schema.DecisionAlwaysAllow:
		if pending.dangerous {
			s.mu.Unlock()
			log.Warn("service always-allow rejected", "command", pending.command)
			return schema.ResolvePermissionResponse{}, schema.ErrAlwaysAllowDangerous
		}
		st.alwaysAllow = true
		st.pending = nil
		snapshot := s.snapshotLocked(st)
		s.mu.Unlock()
		pending.resolve(true)
		s.emitState(snapshot)
		s.persistSession(log, sessionID)
		log.Info("service permission always-allowed", "command", pending.command)
		return schema.ResolvePermissionResponse{Allowed: true}, nil

	case schema.DecisionAllow:
		if pending.dangerous && !st.confirmArmed {
			st.confirmArmed = true
			snapshot := s.snapshotLocked(st)
			s.mu.Unlock()
			s.emitPermission(schema.PermissionEvent{
				SessionID: sessionID,
				Command:   pending.command,
				Dangerous: true,
				Confirm:   true,
			})
			s.emitState(snapshot)
			log.Info("service permission armed", "command", pending.command)
			return schema.ResolvePermissionResponse{Armed: true}, nil
		}
		st.pending = nil
		st.confirmArmed = false
		snapshot := s.snapshotLocked(st)
		s.mu.Unlock()
		pending.resolve(true)
		s.emitState(snapshot)
		log.Info("service permission allowed", "command", pending.command, "dangerous", pending.dangerous)
		return schema.ResolvePermissionResponse{Allowed: true}, nil

	default:
		s.mu.Unlock()
		return schema.ResolvePermissionResponse{}, schema.ErrInvalidDecision
	}
}

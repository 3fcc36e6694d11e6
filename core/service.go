package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/shellpilot/internal/logx"
	"pkt.systems/shellpilot/internal/persist"
	"pkt.systems/shellpilot/schema"
)

// service implements the core service behavior.
type service struct {
	cfg    schema.ServiceConfig
	term   Terminal
	driver Driver
	sink   EventSink
	store  *persist.Store
	logger pslog.Logger

	mu       sync.Mutex
	sessions map[schema.SessionID]*agentState
	cancels  map[schema.SessionID]context.CancelFunc
	flush    map[schema.SessionID]*time.Timer
}

var stopSleep = time.Sleep

// agentState is one session's slot in the arena. All fields are guarded by
// the service mutex.
type agentState struct {
	id    schema.SessionID
	steps []schema.AgentStep

	running  bool
	thinking bool
	aborted  bool

	// pending holds the outstanding permission request; the command and its
	// resolver live and die together.
	pending      *permissionRequest
	confirmArmed bool
	alwaysAllow  bool

	overlayVisible  bool
	thinkingEnabled bool

	queue []schema.QueueItem

	summary     string
	summarized  bool
	summarizing bool

	history *historyBuffer
}

// NewService constructs the core service implementation.
func NewService(cfg schema.ServiceConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:      cfg,
		term:     deps.Terminal,
		driver:   deps.Driver,
		sink:     deps.EventSink,
		store:    store,
		logger:   logger,
		sessions: make(map[schema.SessionID]*agentState),
		cancels:  make(map[schema.SessionID]context.CancelFunc),
		flush:    make(map[schema.SessionID]*time.Timer),
	}, nil
}

func (s *service) GetState(ctx context.Context, req schema.GetStateRequest) (schema.GetStateResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.GetStateResponse{}, err
	}
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.getOrCreateStateLocked(sessionID)
	return schema.GetStateResponse{State: s.snapshotLocked(st)}, nil
}

func (s *service) SetThinkingEnabled(ctx context.Context, req schema.SetThinkingEnabledRequest) (schema.SetThinkingEnabledResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.SetThinkingEnabledResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.getOrCreateStateLocked(sessionID)
	st.thinkingEnabled = req.Enabled
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()
	s.emitState(snapshot)
	log.Debug("service thinking toggled", "enabled", req.Enabled)
	return schema.SetThinkingEnabledResponse{State: snapshot}, nil
}

func (s *service) SetOverlayVisible(ctx context.Context, req schema.SetOverlayVisibleRequest) (schema.SetOverlayVisibleResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.SetOverlayVisibleResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.getOrCreateStateLocked(sessionID)
	st.overlayVisible = req.Visible
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()
	s.emitState(snapshot)
	log.Debug("service overlay toggled", "visible", req.Visible)
	return schema.SetOverlayVisibleResponse{State: snapshot}, nil
}

func (s *service) CloseSession(ctx context.Context, req schema.CloseSessionRequest) (schema.CloseSessionResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.CloseSessionResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	cancel := s.cancels[sessionID]
	delete(s.cancels, sessionID)
	if timer := s.flush[sessionID]; timer != nil {
		timer.Stop()
		delete(s.flush, sessionID)
	}
	var pending *permissionRequest
	if st != nil {
		pending = st.pending
		st.pending = nil
	}
	s.mu.Unlock()

	if pending != nil {
		pending.resolve(false)
	}
	if cancel != nil {
		cancel()
	}
	if closer, ok := s.term.(SessionCloser); ok && s.term != nil {
		closer.CloseSession(sessionID)
	}
	if s.store != nil {
		if err := s.store.Delete(sessionID); err != nil {
			log.Warn("service session snapshot delete failed", "err", err)
		}
	}
	log.Info("service session closed")
	return schema.CloseSessionResponse{}, nil
}

func (s *service) ResetContext(ctx context.Context, req schema.ResetContextRequest) (schema.ResetContextResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.ResetContextResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.getOrCreateStateLocked(sessionID)
	st.summary = ""
	st.summarized = false
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()
	s.emitState(snapshot)
	s.persistSession(log, sessionID)
	log.Info("service context reset")
	return schema.ResetContextResponse{}, nil
}

func (s *service) ClearContext(ctx context.Context, req schema.ClearContextRequest) (schema.ClearContextResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.ClearContextResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.getOrCreateStateLocked(sessionID)
	st.summary = ""
	st.summarized = false
	st.steps = nil
	st.history.Clear()
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()
	if clearer, ok := s.term.(HistoryClearer); ok && s.term != nil {
		clearer.ClearHistory(sessionID)
	}
	s.emitState(snapshot)
	s.persistSession(log, sessionID)
	log.Info("service context cleared")
	return schema.ClearContextResponse{}, nil
}

// getOrCreateStateLocked returns the session's arena slot, creating it and
// loading any persisted snapshot on first reference.
func (s *service) getOrCreateStateLocked(sessionID schema.SessionID) *agentState {
	if st, ok := s.sessions[sessionID]; ok {
		return st
	}
	st := &agentState{
		id:              sessionID,
		thinkingEnabled: true,
		history:         newHistory(s.cfg.HistoryMax),
	}
	if s.store != nil {
		if snapshot, ok, err := s.store.Load(sessionID); err == nil && ok {
			st.steps = append([]schema.AgentStep(nil), snapshot.Steps...)
			st.history = newHistoryFromPersisted(s.cfg.HistoryMax, snapshot.History)
			st.summary = snapshot.Summary
			st.summarized = snapshot.Summarized
			st.alwaysAllow = snapshot.AlwaysAllow
		}
	}
	s.sessions[sessionID] = st
	return st
}

// registerCancelLocked stores the run's cancel func, cancelling any stale
// predecessor for the session.
func (s *service) registerCancelLocked(sessionID schema.SessionID, cancel context.CancelFunc) {
	if prev := s.cancels[sessionID]; prev != nil {
		prev()
	}
	s.cancels[sessionID] = cancel
}

func (s *service) snapshotLocked(st *agentState) schema.AgentSnapshot {
	snapshot := schema.AgentSnapshot{
		SessionID:       st.id,
		Steps:           append([]schema.AgentStep(nil), st.steps...),
		Running:         st.running,
		Thinking:        st.thinking,
		ConfirmArmed:    st.confirmArmed,
		AlwaysAllow:     st.alwaysAllow,
		OverlayVisible:  st.overlayVisible,
		ThinkingEnabled: st.thinkingEnabled,
		Summarized:      st.summarized,
		Queued:          append([]schema.QueueItem(nil), st.queue...),
	}
	if st.pending != nil {
		snapshot.PendingCommand = st.pending.command
		snapshot.PendingDangerous = st.pending.dangerous
	}
	return snapshot
}

func (s *service) emitState(snapshot schema.AgentSnapshot) {
	if s.sink == nil {
		return
	}
	s.sink.OnState(schema.StateEvent{SessionID: snapshot.SessionID, State: snapshot})
}

func (s *service) emitStep(sessionID schema.SessionID, index int, step schema.AgentStep, replace bool) {
	if s.sink == nil {
		return
	}
	s.sink.OnStep(schema.StepEvent{SessionID: sessionID, Index: index, Step: step, Replace: replace})
}

func (s *service) emitQueue(sessionID schema.SessionID, items []schema.QueueItem) {
	if s.sink == nil {
		return
	}
	s.sink.OnQueue(schema.QueueEvent{SessionID: sessionID, Items: items})
}

func (s *service) emitPermission(event schema.PermissionEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnPermission(event)
}

// schedulePersist debounces snapshot flushes: rapid step churn collapses
// into one write per quiet period.
func (s *service) schedulePersist(sessionID schema.SessionID) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	if timer := s.flush[sessionID]; timer != nil {
		timer.Stop()
	}
	s.flush[sessionID] = time.AfterFunc(s.cfg.PersistDebounce, func() {
		s.mu.Lock()
		delete(s.flush, sessionID)
		s.mu.Unlock()
		s.persistSession(s.logger, sessionID)
	})
	s.mu.Unlock()
}

// persistSession flushes the session snapshot immediately, stripping
// transient steps.
func (s *service) persistSession(log pslog.Logger, sessionID schema.SessionID) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return
	}
	snapshot := persist.ThreadSnapshot{
		Steps:       durableSteps(st.steps),
		History:     st.history.Entries(),
		Summary:     st.summary,
		Summarized:  st.summarized,
		AlwaysAllow: st.alwaysAllow,
	}
	s.mu.Unlock()
	if err := s.store.Save(sessionID, snapshot); err != nil {
		if log != nil {
			log.Warn("service persist failed", "err", err)
		}
		return
	}
	if log != nil {
		log.Trace("service state persisted", "steps", len(snapshot.Steps))
	}
}

// durableSteps drops thinking markers and unfinalized streaming entries.
func durableSteps(steps []schema.AgentStep) []schema.AgentStep {
	out := make([]schema.AgentStep, 0, len(steps))
	for _, step := range steps {
		if step.Kind == schema.StepThinking || step.Kind == schema.StepStreaming {
			continue
		}
		out = append(out, step)
	}
	return out
}

// detachRunContext derives a cancellable run context that survives the
// request context but keeps its logger identity.
func detachRunContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.Background()
	if ctx != nil {
		if logger := pslog.Ctx(ctx); logger != nil {
			base = logx.CopyContextFields(pslog.ContextWithLogger(base, logger), ctx)
		}
	}
	return context.WithCancel(base)
}

func normalizeSessionID(sessionID schema.SessionID) (schema.SessionID, error) {
	trimmed := strings.TrimSpace(string(sessionID))
	if trimmed == "" {
		return "", schema.ErrInvalidSession
	}
	return schema.SessionID(trimmed), nil
}

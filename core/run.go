package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pkt.systems/shellpilot/internal/cleanview"
	"pkt.systems/shellpilot/internal/danger"
	"pkt.systems/shellpilot/internal/logx"
	"pkt.systems/shellpilot/internal/termstate"
	"pkt.systems/shellpilot/schema"
)

// interruptSettle is the pause between interrupting pending terminal input
// and killing the line before a tool command is submitted.
const interruptSettle = 150 * time.Millisecond

func (s *service) StartRun(ctx context.Context, req schema.StartRunRequest) (schema.StartRunResponse, error) {
	if s.driver == nil {
		return schema.StartRunResponse{}, schema.ErrDriverUnavailable
	}
	if s.term == nil {
		return schema.StartRunResponse{}, schema.ErrTerminalUnavailable
	}
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.StartRunResponse{}, err
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return schema.StartRunResponse{}, schema.ErrEmptyPrompt
	}
	baseLog := logx.WithSession(ctx, sessionID)
	ctx = logx.ContextWithSessionLogger(ctx, baseLog, sessionID)
	model := s.resolveModel(req.Model)
	log := baseLog.With("model", model.Model, "prompt_len", len(prompt))

	s.mu.Lock()
	st := s.getOrCreateStateLocked(sessionID)
	if st.running {
		item := schema.QueueItem{ID: newID(), Kind: schema.QueueAgent, Content: prompt}
		st.queue = append(st.queue, item)
		items := append([]schema.QueueItem(nil), st.queue...)
		snapshot := s.snapshotLocked(st)
		s.mu.Unlock()
		s.emitQueue(sessionID, items)
		log.Info("service run queued", "item", item.ID, "depth", len(items))
		return schema.StartRunResponse{Queued: true, Item: item, State: snapshot}, nil
	}
	st.running = true
	st.thinking = true
	st.aborted = false
	separatorIndex := -1
	var separator schema.AgentStep
	if len(st.steps) > 0 {
		separator = schema.AgentStep{Kind: schema.StepSeparator, Output: prompt}
		st.steps = append(st.steps, separator)
		separatorIndex = len(st.steps) - 1
	}
	thinkingEnabled := st.thinkingEnabled
	runCtx, runCancel := detachRunContext(ctx)
	s.registerCancelLocked(sessionID, runCancel)
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()

	if separatorIndex >= 0 {
		s.emitStep(sessionID, separatorIndex, separator, false)
	}
	s.emitState(snapshot)
	log.Info("service run start")

	go s.runAgent(runCtx, sessionID, prompt, req.Workdir, model, thinkingEnabled)
	return schema.StartRunResponse{State: snapshot}, nil
}

func (s *service) StopRun(ctx context.Context, req schema.StopRunRequest) (schema.StopRunResponse, error) {
	sessionID, err := normalizeSessionID(req.SessionID)
	if err != nil {
		return schema.StopRunResponse{}, err
	}
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || !st.running {
		s.mu.Unlock()
		return schema.StopRunResponse{}, schema.ErrNoActiveRun
	}
	st.running = false
	st.thinking = false
	st.aborted = true
	st.confirmArmed = false
	pending := st.pending
	st.pending = nil
	cancel := s.cancels[sessionID]
	delete(s.cancels, sessionID)
	step := schema.AgentStep{Kind: schema.StepError, Output: schema.AbortedMessage}
	st.steps = append(st.steps, step)
	stepIndex := len(st.steps) - 1
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()

	if pending != nil {
		pending.resolve(false)
	}
	if cancel != nil {
		cancel()
	}
	s.emitStep(sessionID, stepIndex, step, false)
	s.emitState(snapshot)
	s.persistSession(log, sessionID)
	log.Info("service run stopped")
	s.drainQueue(ctx, sessionID)
	return schema.StopRunResponse{State: snapshot}, nil
}

func (s *service) resolveModel(mc schema.ModelConfig) schema.ModelConfig {
	if mc.Provider == "" {
		mc.Provider = s.cfg.Provider
	}
	if mc.Model == "" {
		mc.Model = s.cfg.DefaultModel
	}
	if mc.ContextWindow <= 0 {
		mc.ContextWindow = s.cfg.ContextWindow
	}
	if mc.MaxSteps <= 0 {
		mc.MaxSteps = s.cfg.MaxSteps
	}
	return mc
}

func (s *service) runAgent(ctx context.Context, sessionID schema.SessionID, prompt, workdir string, model schema.ModelConfig, thinkingEnabled bool) {
	log := logx.WithSession(ctx, sessionID)
	started := time.Now()
	full := s.buildPrompt(sessionID, prompt, workdir)
	result, err := s.driver.RunAgent(ctx, DriverRequest{
		SessionID:       sessionID,
		Prompt:          full,
		Model:           model,
		ThinkingEnabled: thinkingEnabled,
		MaxSteps:        model.MaxSteps,
		Execute: func(execCtx context.Context, command string) (string, error) {
			return s.executeTool(execCtx, sessionID, command, model)
		},
		WriteOnly: func(writeCtx context.Context, input string) error {
			s.prepareTerminal(writeCtx, sessionID)
			return s.term.Write(writeCtx, sessionID, input)
		},
		OnStep: func(sig StepSignal) {
			s.applyStepSignal(sessionID, sig)
		},
	})
	if err != nil {
		log.Warn("service run ended", "err", err, "elapsed", time.Since(started))
	} else {
		log.Info("service run ended", "success", result.Success, "elapsed", time.Since(started))
	}
	s.finishRun(ctx, sessionID, result, err)
}

// finishRun concludes the thread for a driver return. When StopRun already
// concluded it, the unwind is silent so the abort produces a single error
// step.
func (s *service) finishRun(ctx context.Context, sessionID schema.SessionID, result DriverResult, err error) {
	log := logx.WithSession(ctx, sessionID)

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return
	}
	if !st.running {
		s.mu.Unlock()
		return
	}
	st.running = false
	st.thinking = false
	cancel := s.cancels[sessionID]
	delete(s.cancels, sessionID)

	var step schema.AgentStep
	switch {
	case err == nil:
		step = schema.AgentStep{Kind: schema.StepDone, Output: result.Message}
		if !result.Success {
			step.Kind = schema.StepFailed
		}
		if step.Output == "" {
			if result.Success {
				step.Output = "Done"
			} else {
				step.Output = "The task could not be completed"
			}
		}
	case st.aborted, errors.Is(err, context.Canceled), errors.Is(err, schema.ErrAborted):
		// Abort path: the error step was already appended.
	case errors.Is(err, schema.ErrPermissionDenied):
		step = schema.AgentStep{Kind: schema.StepError, Output: "Permission denied by user"}
	default:
		step = schema.AgentStep{Kind: schema.StepError, Output: err.Error()}
	}
	stepIndex := -1
	if step.Kind != "" {
		st.steps = append(st.steps, step)
		stepIndex = len(st.steps) - 1
	}
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stepIndex >= 0 {
		s.emitStep(sessionID, stepIndex, step, false)
	}
	s.emitState(snapshot)
	s.persistSession(log, sessionID)
	s.drainQueue(ctx, sessionID)
}

// applyStepSignal implements the thread coalescing machine: streaming
// rewrites a trailing streaming entry in place, thought finalizes it, and a
// bare thinking signal only toggles the flag.
func (s *service) applyStepSignal(sessionID schema.SessionID, sig StepSignal) {
	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || !st.running {
		s.mu.Unlock()
		return
	}
	if sig.Kind == schema.StepThinking {
		st.thinking = true
		snapshot := s.snapshotLocked(st)
		s.mu.Unlock()
		s.emitState(snapshot)
		return
	}
	step := schema.AgentStep{Kind: sig.Kind, Output: sig.Output}
	replace := false
	switch sig.Kind {
	case schema.StepStreaming, schema.StepThought:
		if sig.Kind == schema.StepThought {
			st.thinking = false
		}
		if n := len(st.steps); n > 0 && st.steps[n-1].Kind == schema.StepStreaming {
			st.steps[n-1] = step
			replace = true
		} else {
			st.steps = append(st.steps, step)
		}
	default:
		st.steps = append(st.steps, step)
	}
	index := len(st.steps) - 1
	s.mu.Unlock()
	s.emitStep(sessionID, index, step, replace)
	s.schedulePersist(sessionID)
}

// executeTool is the Execute callback handed to the driver: permission
// gating, terminal-input interruption, bounded execution, and result
// shaping. Command failures come back as text so the model can adapt;
// orchestration failures come back as errors and end the loop.
func (s *service) executeTool(ctx context.Context, sessionID schema.SessionID, command string, model schema.ModelConfig) (string, error) {
	log := logx.WithSession(ctx, sessionID)
	command = strings.TrimSpace(command)
	if command == "" {
		return "", schema.ErrInvalidRequest
	}

	dangerous := danger.Dangerous(command)
	allowed, err := s.requestPermission(ctx, sessionID, command, dangerous)
	if err != nil {
		return "", err
	}
	if !allowed {
		s.mu.Lock()
		aborted := s.sessions[sessionID] == nil || s.sessions[sessionID].aborted
		s.mu.Unlock()
		if aborted {
			return "", schema.ErrAborted
		}
		log.Info("service command denied", "command", command)
		return "", schema.ErrPermissionDenied
	}

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || st.aborted {
		s.mu.Unlock()
		return "", schema.ErrAborted
	}
	st.history.Append(command)
	step := schema.AgentStep{Kind: schema.StepExecuting, Output: command}
	st.steps = append(st.steps, step)
	stepIndex := len(st.steps) - 1
	s.mu.Unlock()
	s.emitStep(sessionID, stepIndex, step, false)

	if !s.cfg.DisableAuditLogging {
		log.Debug("audit command", "command", command, "dangerous", dangerous)
	}

	s.prepareTerminal(ctx, sessionID)

	execCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	result, execErr := s.term.Exec(execCtx, sessionID, command)
	cancel()

	var output string
	switch {
	case execErr == nil:
		output = shapeExecOutput(result)
	case errors.Is(execErr, context.DeadlineExceeded) && ctx.Err() == nil:
		output = fmt.Sprintf("Command timed out after %s: %s", s.cfg.CommandTimeout, command)
		log.Warn("service command timeout", "command", command)
	case ctx.Err() != nil:
		return "", ctx.Err()
	default:
		log.Error("service command failed", "command", command, "err", execErr)
		return "", execErr
	}

	s.mu.Lock()
	st = s.sessions[sessionID]
	executedIndex := -1
	executed := schema.AgentStep{Kind: schema.StepExecuted, Output: fmt.Sprintf("$ %s\n%s", command, output)}
	if st != nil && !st.aborted {
		st.steps = append(st.steps, executed)
		executedIndex = len(st.steps) - 1
	}
	s.mu.Unlock()
	if executedIndex >= 0 {
		s.emitStep(sessionID, executedIndex, executed, false)
		s.schedulePersist(sessionID)
	}

	s.checkAndMaybeSummarize(ctx, sessionID, model)
	return output, nil
}

// prepareTerminal makes the session safe to receive input: a detected
// full-screen program is walked through its exit sequence, a busy foreground
// process is interrupted, and any partially typed input line is killed. An
// idle prompt only gets the line kill.
func (s *service) prepareTerminal(ctx context.Context, sessionID schema.SessionID) {
	raw := s.term.History(sessionID)
	if raw == "" {
		return
	}
	cleaned := cleanview.Clean(raw)
	if program := termstate.DetectProgram(cleaned); program != "" {
		write := func(wctx context.Context, keys string) error {
			return s.term.Write(wctx, sessionID, keys)
		}
		read := func(context.Context) (string, error) {
			return cleanview.Clean(s.term.History(sessionID)), nil
		}
		attempt, err := termstate.AttemptExit(ctx, program, write, read)
		log := logx.WithSession(ctx, sessionID).With("program", program)
		if err != nil {
			log.Warn("service tui exit aborted", "err", err)
			return
		}
		log.Debug("service tui exit attempted", "tried", len(attempt.Tried), "exited", attempt.Exited)
	} else if termstate.Classify(cleaned) != schema.TermIdle {
		_ = s.term.Write(ctx, sessionID, "\x03")
		stopSleep(interruptSettle)
	}
	_ = s.term.Write(ctx, sessionID, "\x15")
}

// shapeExecOutput renders an exec result the way the model should see it.
func shapeExecOutput(result schema.ExecResult) string {
	out := strings.TrimRight(result.Stdout, "\n")
	if result.ExitCode != 0 {
		failure := fmt.Sprintf("Command failed with exit code %d", result.ExitCode)
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			failure += "\n" + stderr
		}
		if out != "" {
			failure += "\n" + out
		}
		return failure
	}
	if out == "" {
		if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
			return stderr
		}
		return "(command produced no output)"
	}
	return out
}

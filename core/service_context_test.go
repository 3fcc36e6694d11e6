package core

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"pkt.systems/shellpilot/schema"
)

func runOnce(t *testing.T, svc Service, sessionID schema.SessionID, prompt string) {
	t.Helper()
	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: sessionID, Prompt: prompt}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, sessionID).Running
	})
}

func TestSummarizeTriggersOnceUntilReset(t *testing.T) {
	svc, term, driver, _ := newTestService(t, schema.ServiceConfig{ContextWindow: 100})
	var history strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&history, "compiling package %d of 60: internal/subsystem%d ready\n", i+1, i)
	}
	term.history = history.String()
	driver.summary = "SUMMARY: long build session"
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		if _, err := req.Execute(ctx, "make"); err != nil {
			return DriverResult{}, err
		}
		return DriverResult{Success: true}, nil
	}

	resolveNext := func() {
		waitFor(t, "pending permission", func() bool {
			return sessionState(t, svc, "sess-1").PendingCommand != ""
		})
		if _, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAllow}); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "build"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	resolveNext()
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})

	if !sessionState(t, svc, "sess-1").Summarized {
		t.Fatalf("expected summarized state")
	}
	if got := driver.SummarizeCalls(); got != 1 {
		t.Fatalf("expected one summarize call, got %d", got)
	}

	// A second run reuses the stored summary: the prompt carries it and no
	// new summarization happens despite the window still being exceeded.
	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "build again"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	resolveNext()
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})
	prompts := driver.Prompts()
	if !strings.Contains(prompts[1], "SUMMARY: long build session") {
		t.Fatalf("expected summary in second prompt")
	}
	if got := driver.SummarizeCalls(); got != 1 {
		t.Fatalf("expected summarize to stay at one call, got %d", got)
	}

	// Reset discards the summary and re-arms summarization.
	if _, err := svc.ResetContext(context.Background(), schema.ResetContextRequest{SessionID: "sess-1"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if sessionState(t, svc, "sess-1").Summarized {
		t.Fatalf("expected summary discarded")
	}
	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "one more"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	resolveNext()
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})
	prompts = driver.Prompts()
	if strings.Contains(prompts[2], "SUMMARY: long build session") {
		t.Fatalf("expected raw context after reset")
	}
	if got := driver.SummarizeCalls(); got != 2 {
		t.Fatalf("expected summarize re-armed after reset, got %d calls", got)
	}
}

func TestClearContextDropsThreadAndHistory(t *testing.T) {
	svc, term, driver, _ := newTestService(t, schema.ServiceConfig{})
	term.history = "old output\nuser@host:~$ "
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		req.OnStep(StepSignal{Kind: schema.StepThought, Output: "done looking"})
		return DriverResult{Success: true}, nil
	}
	runOnce(t, svc, "sess-1", "look")
	if len(sessionState(t, svc, "sess-1").Steps) == 0 {
		t.Fatalf("expected steps before clear")
	}

	if _, err := svc.ClearContext(context.Background(), schema.ClearContextRequest{SessionID: "sess-1"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	state := sessionState(t, svc, "sess-1")
	if len(state.Steps) != 0 || state.Summarized {
		t.Fatalf("expected empty thread, got %+v", state)
	}
	term.mu.Lock()
	cleared := term.cleared
	term.mu.Unlock()
	if !cleared {
		t.Fatalf("expected terminal history cleared")
	}
}

func TestPresentationToggles(t *testing.T) {
	svc, _, _, _ := newTestService(t, schema.ServiceConfig{})
	resp, err := svc.SetThinkingEnabled(context.Background(), schema.SetThinkingEnabledRequest{SessionID: "sess-1", Enabled: false})
	if err != nil {
		t.Fatalf("set thinking: %v", err)
	}
	if resp.State.ThinkingEnabled {
		t.Fatalf("expected thinking disabled")
	}
	overlay, err := svc.SetOverlayVisible(context.Background(), schema.SetOverlayVisibleRequest{SessionID: "sess-1", Visible: true})
	if err != nil {
		t.Fatalf("set overlay: %v", err)
	}
	if !overlay.State.OverlayVisible {
		t.Fatalf("expected overlay visible")
	}
}

func TestThreadSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	svc, _, driver, _ := newTestService(t, schema.ServiceConfig{StateDir: dir})
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		req.OnStep(StepSignal{Kind: schema.StepThought, Output: "checked the logs"})
		return DriverResult{Success: true, Message: "clean"}, nil
	}
	runOnce(t, svc, "sess-1", "check logs")

	reborn, _, _, _ := newTestService(t, schema.ServiceConfig{StateDir: dir})
	state := sessionState(t, reborn, "sess-1")
	if len(state.Steps) != 2 {
		t.Fatalf("expected persisted thread, got %+v", state.Steps)
	}
	if state.Steps[0].Output != "checked the logs" || state.Steps[1].Kind != schema.StepDone {
		t.Fatalf("unexpected persisted steps: %+v", state.Steps)
	}
}

func TestCloseSessionDropsStateAndSnapshot(t *testing.T) {
	dir := t.TempDir()
	svc, _, driver, _ := newTestService(t, schema.ServiceConfig{StateDir: dir})
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		req.OnStep(StepSignal{Kind: schema.StepThought, Output: "working"})
		return DriverResult{Success: true}, nil
	}
	runOnce(t, svc, "sess-1", "work")

	if _, err := svc.CloseSession(context.Background(), schema.CloseSessionRequest{SessionID: "sess-1"}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := sessionState(t, svc, "sess-1").Steps; len(got) != 0 {
		t.Fatalf("expected fresh state after close, got %+v", got)
	}
}

func TestBareThinkingSignalTogglesFlagOnly(t *testing.T) {
	svc, _, driver, _ := newTestService(t, schema.ServiceConfig{})
	thinking := make(chan struct{})
	release := make(chan struct{})
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		req.OnStep(StepSignal{Kind: schema.StepThinking})
		close(thinking)
		<-release
		return DriverResult{Success: true}, nil
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "ponder"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	<-thinking
	state := sessionState(t, svc, "sess-1")
	if !state.Thinking {
		t.Fatalf("expected thinking flag")
	}
	if len(state.Steps) != 0 {
		t.Fatalf("bare thinking must not append steps, got %+v", state.Steps)
	}
	close(release)
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})
}

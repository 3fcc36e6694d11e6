package core

import (
	"context"
	"strings"
	"testing"

	"pkt.systems/shellpilot/schema"
)

func TestAllowExecutesCommand(t *testing.T) {
	svc, term, driver, _ := newTestService(t, schema.ServiceConfig{})
	term.exec = func(command string) (schema.ExecResult, error) {
		return schema.ExecResult{Stdout: "file.txt\n"}, nil
	}
	outputCh := make(chan string, 1)
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		out, err := req.Execute(ctx, "ls -la")
		if err != nil {
			return DriverResult{}, err
		}
		outputCh <- out
		return DriverResult{Success: true, Message: "listed"}, nil
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "list files"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitFor(t, "pending permission", func() bool {
		return sessionState(t, svc, "sess-1").PendingCommand == "ls -la"
	})

	resp, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAllow})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resp.Allowed || resp.Armed {
		t.Fatalf("expected plain allow, got %+v", resp)
	}
	if got := <-outputCh; got != "file.txt" {
		t.Fatalf("driver saw %q", got)
	}
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})

	state := sessionState(t, svc, "sess-1")
	var kinds []schema.StepKind
	for _, step := range state.Steps {
		kinds = append(kinds, step.Kind)
	}
	want := []schema.StepKind{schema.StepExecuting, schema.StepExecuted, schema.StepDone}
	if len(kinds) != len(want) {
		t.Fatalf("steps = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("steps = %v, want %v", kinds, want)
		}
	}
	if !strings.Contains(state.Steps[1].Output, "$ ls -la") {
		t.Fatalf("executed step missing command echo: %q", state.Steps[1].Output)
	}
}

func TestDenyEndsRunWithErrorStep(t *testing.T) {
	svc, _, driver, _ := newTestService(t, schema.ServiceConfig{})
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		_, err := req.Execute(ctx, "cat secrets.txt")
		return DriverResult{}, err
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "read it"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitFor(t, "pending permission", func() bool {
		return sessionState(t, svc, "sess-1").PendingCommand != ""
	})
	if _, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionDeny}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})
	state := sessionState(t, svc, "sess-1")
	last := state.Steps[len(state.Steps)-1]
	if last.Kind != schema.StepError || !strings.Contains(last.Output, "Permission denied") {
		t.Fatalf("expected denial error step, got %+v", last)
	}
}

func TestDangerousCommandNeedsDoubleConfirmation(t *testing.T) {
	svc, _, driver, sink := newTestService(t, schema.ServiceConfig{})
	executed := make(chan string, 1)
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		out, err := req.Execute(ctx, "rm -rf /tmp/scratch")
		if err != nil {
			return DriverResult{}, err
		}
		executed <- out
		return DriverResult{Success: true}, nil
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "clean up"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitFor(t, "pending permission", func() bool {
		state := sessionState(t, svc, "sess-1")
		return state.PendingCommand != "" && state.PendingDangerous
	})

	// always_allow never covers dangerous commands.
	if _, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAlwaysAllow}); err != schema.ErrAlwaysAllowDangerous {
		t.Fatalf("expected ErrAlwaysAllowDangerous, got %v", err)
	}

	resp, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAllow})
	if err != nil {
		t.Fatalf("first allow: %v", err)
	}
	if !resp.Armed || resp.Allowed {
		t.Fatalf("expected armed confirmation, got %+v", resp)
	}
	if !sessionState(t, svc, "sess-1").ConfirmArmed {
		t.Fatalf("expected confirm_armed state")
	}

	resp, err = svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAllow})
	if err != nil {
		t.Fatalf("second allow: %v", err)
	}
	if !resp.Allowed {
		t.Fatalf("expected release, got %+v", resp)
	}
	<-executed
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})

	confirms := 0
	for _, event := range sink.Permissions() {
		if event.Confirm {
			confirms++
		}
	}
	if confirms != 1 {
		t.Fatalf("expected one confirm event, got %d", confirms)
	}
}

func TestAlwaysAllowSkipsGateForSafeCommands(t *testing.T) {
	svc, _, driver, sink := newTestService(t, schema.ServiceConfig{})
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		if _, err := req.Execute(ctx, "ls"); err != nil {
			return DriverResult{}, err
		}
		if _, err := req.Execute(ctx, "pwd"); err != nil {
			return DriverResult{}, err
		}
		return DriverResult{Success: true}, nil
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "look around"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitFor(t, "pending permission", func() bool {
		return sessionState(t, svc, "sess-1").PendingCommand == "ls"
	})
	resp, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAlwaysAllow})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resp.Allowed {
		t.Fatalf("expected allow, got %+v", resp)
	}
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})
	// The second command rides the waiver without a new permission event.
	if got := len(sink.Permissions()); got != 1 {
		t.Fatalf("expected a single permission event, got %d", got)
	}
	if !sessionState(t, svc, "sess-1").AlwaysAllow {
		t.Fatalf("expected always_allow flag set")
	}
}

func TestResolvePermissionWithoutPending(t *testing.T) {
	svc, _, _, _ := newTestService(t, schema.ServiceConfig{})
	_, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAllow})
	if err != schema.ErrNoPendingPermission {
		t.Fatalf("expected ErrNoPendingPermission, got %v", err)
	}
}

func TestCommandFailureIsReturnedAsText(t *testing.T) {
	svc, term, driver, _ := newTestService(t, schema.ServiceConfig{})
	term.exec = func(command string) (schema.ExecResult, error) {
		return schema.ExecResult{Stderr: "No such file or directory", ExitCode: 2}, nil
	}
	outputCh := make(chan string, 1)
	driver.run = func(ctx context.Context, req DriverRequest) (DriverResult, error) {
		out, err := req.Execute(ctx, "cat missing.txt")
		if err != nil {
			return DriverResult{}, err
		}
		outputCh <- out
		return DriverResult{Success: false, Message: "file is missing"}, nil
	}

	if _, err := svc.StartRun(context.Background(), schema.StartRunRequest{SessionID: "sess-1", Prompt: "read"}); err != nil {
		t.Fatalf("start run: %v", err)
	}
	waitFor(t, "pending permission", func() bool {
		return sessionState(t, svc, "sess-1").PendingCommand != ""
	})
	if _, err := svc.ResolvePermission(context.Background(), schema.ResolvePermissionRequest{SessionID: "sess-1", Decision: schema.DecisionAllow}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	out := <-outputCh
	if !strings.Contains(out, "exit code 2") || !strings.Contains(out, "No such file") {
		t.Fatalf("expected failure text, got %q", out)
	}
	waitFor(t, "run to finish", func() bool {
		return !sessionState(t, svc, "sess-1").Running
	})
	state := sessionState(t, svc, "sess-1")
	last := state.Steps[len(state.Steps)-1]
	if last.Kind != schema.StepFailed {
		t.Fatalf("expected failed conclusion, got %+v", last)
	}
}

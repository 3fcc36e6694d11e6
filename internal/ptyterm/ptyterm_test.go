package ptyterm

import (
	"context"
	"strings"
	"testing"
	"time"

	"pkt.systems/shellpilot/core"
	"pkt.systems/shellpilot/schema"
)

var (
	_ core.Terminal       = (*Host)(nil)
	_ core.HistoryClearer = (*Host)(nil)
	_ core.SessionCloser  = (*Host)(nil)
)

func TestExecCapturesOutputAndExitCode(t *testing.T) {
	host := New(Options{Shell: "/bin/sh", Workdir: t.TempDir()})
	defer host.Close()

	result, err := host.Exec(context.Background(), "sess-1", "echo hello; echo oops >&2")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Fatalf("stdout = %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "oops" {
		t.Fatalf("stderr = %q", result.Stderr)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code = %d", result.ExitCode)
	}

	result, err = host.Exec(context.Background(), "sess-1", "exit 3")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestExecHonorsDeadline(t *testing.T) {
	host := New(Options{Shell: "/bin/sh"})
	defer host.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := host.Exec(ctx, "sess-1", "sleep 5")
	if err == nil {
		t.Fatalf("expected deadline error")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("exec did not respect deadline")
	}
}

func TestExecRunsInWorkdir(t *testing.T) {
	dir := t.TempDir()
	host := New(Options{Shell: "/bin/sh", Workdir: dir})
	defer host.Close()

	result, err := host.Exec(context.Background(), "sess-1", "pwd")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !strings.Contains(result.Stdout, dir) {
		t.Fatalf("pwd = %q, want %q", result.Stdout, dir)
	}
}

func TestWriteAndHistory(t *testing.T) {
	host := New(Options{Shell: "/bin/sh"})
	defer host.Close()

	id := schema.SessionID("sess-1")
	if err := host.Write(context.Background(), id, "echo pty-roundtrip\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(host.History(id), "pty-roundtrip") {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !strings.Contains(host.History(id), "pty-roundtrip") {
		t.Fatalf("history missing output: %q", host.History(id))
	}

	// Let the prompt redraw land before clearing.
	time.Sleep(200 * time.Millisecond)
	host.ClearHistory(id)
	if got := host.History(id); strings.Contains(got, "pty-roundtrip") {
		t.Fatalf("expected cleared history, got %q", got)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	host := New(Options{Shell: "/bin/sh"})
	defer host.Close()
	if got := host.History("nope"); got != "" {
		t.Fatalf("History(unknown) = %q", got)
	}
}

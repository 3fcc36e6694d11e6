// Package ptyterm hosts one local shell per session behind a pty and keeps
// a bounded scrollback of everything the shell wrote.
package ptyterm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"pkt.systems/pslog"
	"pkt.systems/shellpilot/schema"
)

// ErrSessionClosed is returned for operations on a closed or unknown session.
var ErrSessionClosed = errors.New("ptyterm: session closed")

// DefaultScrollback bounds the per-session raw output buffer.
const DefaultScrollback = 256 * 1024

// Options configures the host.
type Options struct {
	// Shell defaults to $SHELL, then /bin/sh.
	Shell string
	// Workdir is the initial working directory for new sessions.
	Workdir string
	// Scrollback bounds the per-session raw output buffer in bytes.
	Scrollback int
	Logger     pslog.Logger
}

// Host manages per-session shells.
type Host struct {
	opts Options
	log  pslog.Logger

	mu       sync.Mutex
	sessions map[schema.SessionID]*session
}

type session struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	tty    *os.File
	ring   []byte
	max    int
	closed bool
}

// New constructs a Host.
func New(opts Options) *Host {
	if opts.Shell == "" {
		opts.Shell = os.Getenv("SHELL")
	}
	if opts.Shell == "" {
		opts.Shell = "/bin/sh"
	}
	if opts.Scrollback <= 0 {
		opts.Scrollback = DefaultScrollback
	}
	log := opts.Logger
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Host{
		opts:     opts,
		log:      log,
		sessions: make(map[schema.SessionID]*session),
	}
}

// Write sends raw input to the session's shell, starting it on first use.
func (h *Host) Write(ctx context.Context, sessionID schema.SessionID, input string) error {
	sess, err := h.getOrStart(sessionID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		return ErrSessionClosed
	}
	_, err = sess.tty.WriteString(input)
	return err
}

// History returns the session's raw scrollback. An unknown session yields "".
func (h *Host) History(sessionID schema.SessionID) string {
	h.mu.Lock()
	sess := h.sessions[sessionID]
	h.mu.Unlock()
	if sess == nil {
		return ""
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return string(sess.ring)
}

// ClearHistory drops the session's scrollback.
func (h *Host) ClearHistory(sessionID schema.SessionID) {
	h.mu.Lock()
	sess := h.sessions[sessionID]
	h.mu.Unlock()
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.ring = nil
	sess.mu.Unlock()
}

// Exec runs a command synchronously through the configured shell, outside
// the interactive pty, honoring the context deadline.
func (h *Host) Exec(ctx context.Context, sessionID schema.SessionID, command string) (schema.ExecResult, error) {
	cmd := exec.CommandContext(ctx, h.opts.Shell, "-c", command)
	if h.opts.Workdir != "" {
		cmd.Dir = h.opts.Workdir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := schema.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// CloseSession terminates the session's shell and forgets its scrollback.
func (h *Host) CloseSession(sessionID schema.SessionID) {
	h.mu.Lock()
	sess := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if sess == nil {
		return
	}
	sess.mu.Lock()
	sess.closed = true
	tty := sess.tty
	cmd := sess.cmd
	sess.mu.Unlock()
	if tty != nil {
		_ = tty.Close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	h.log.Debug("pty session closed", "session", sessionID)
}

// Close terminates all sessions.
func (h *Host) Close() {
	h.mu.Lock()
	ids := make([]schema.SessionID, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.CloseSession(id)
	}
}

func (h *Host) getOrStart(sessionID schema.SessionID) (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sess, ok := h.sessions[sessionID]; ok {
		return sess, nil
	}
	cmd := exec.Command(h.opts.Shell)
	if h.opts.Workdir != "" {
		cmd.Dir = h.opts.Workdir
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, err
	}
	sess := &session{cmd: cmd, tty: tty, max: h.opts.Scrollback}
	h.sessions[sessionID] = sess
	go h.readLoop(sessionID, sess)
	h.log.Debug("pty session started", "session", sessionID, "shell", h.opts.Shell)
	return sess, nil
}

func (h *Host) readLoop(sessionID schema.SessionID, sess *session) {
	buf := make([]byte, 4096)
	for {
		n, err := sess.tty.Read(buf)
		if n > 0 {
			sess.mu.Lock()
			sess.ring = append(sess.ring, buf[:n]...)
			if len(sess.ring) > sess.max {
				sess.ring = sess.ring[len(sess.ring)-sess.max:]
			}
			sess.mu.Unlock()
		}
		if err != nil {
			sess.mu.Lock()
			sess.closed = true
			sess.mu.Unlock()
			h.log.Trace("pty read loop ended", "session", sessionID, "err", err)
			return
		}
	}
}

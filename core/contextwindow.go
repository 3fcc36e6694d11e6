package core

import (
	"context"
	"strings"

	"pkt.systems/shellpilot/internal/cleanview"
	"pkt.systems/shellpilot/internal/logx"
	"pkt.systems/shellpilot/internal/tokens"
	"pkt.systems/shellpilot/schema"
)

const (
	// summarizeThresholdPct triggers summarization at this share of the
	// context window.
	summarizeThresholdPct = 90
	// summaryTailLines is how much raw context rides along after a summary.
	summaryTailLines = 40
	// summarizeInputMaxChars bounds the text handed to the summarizer,
	// roughly the most recent ten thousand tokens.
	summarizeInputMaxChars = 40000
	// contextHeadLines/contextTailLines bound the raw context view.
	contextHeadLines = 150
	contextTailLines = 150
)

// buildPrompt augments the user's task with the session's terminal context.
func (s *service) buildPrompt(sessionID schema.SessionID, prompt, workdir string) string {
	var b strings.Builder
	if workdir != "" {
		b.WriteString("Working directory: ")
		b.WriteString(workdir)
		b.WriteString("\n\n")
	}
	if view := s.contextView(sessionID); view != "" {
		b.WriteString("Terminal context:\n")
		b.WriteString(view)
		b.WriteString("\n\n")
	}
	b.WriteString("Task:\n")
	b.WriteString(prompt)
	return b.String()
}

// contextView returns the model-facing view of the session's terminal
// history: the stored summary plus a raw tail once summarized, the bounded
// raw reconstruction otherwise.
func (s *service) contextView(sessionID schema.SessionID) string {
	if s.term == nil {
		return ""
	}
	cleaned := cleanview.Clean(s.term.History(sessionID))

	s.mu.Lock()
	st := s.sessions[sessionID]
	summary := ""
	if st != nil && st.summarized {
		summary = st.summary
	}
	s.mu.Unlock()

	if summary != "" {
		view := summary
		if tail := tailLines(cleaned, summaryTailLines); tail != "" {
			view += "\n\n(recent terminal output follows)\n" + tail
		}
		return view
	}
	return cleanview.TruncateBlock(cleaned, contextHeadLines, contextTailLines)
}

// checkAndMaybeSummarize compresses the terminal context once it crosses
// the window threshold. It runs at most once per session until the summary
// is reset.
func (s *service) checkAndMaybeSummarize(ctx context.Context, sessionID schema.SessionID, model schema.ModelConfig) {
	if s.term == nil || s.driver == nil {
		return
	}
	log := logx.WithSession(ctx, sessionID)
	cleaned := cleanview.Clean(s.term.History(sessionID))
	used := tokens.Count(cleaned)
	threshold := model.ContextWindow * summarizeThresholdPct / 100

	s.mu.Lock()
	st := s.sessions[sessionID]
	if st == nil || st.summarized || st.summarizing || used < threshold {
		s.mu.Unlock()
		return
	}
	st.summarizing = true
	s.mu.Unlock()

	log.Info("service context summarizing", "tokens", used, "window", model.ContextWindow)
	input := cleaned
	if len(input) > summarizeInputMaxChars {
		input = input[len(input)-summarizeInputMaxChars:]
		if idx := strings.IndexByte(input, '\n'); idx >= 0 {
			input = input[idx+1:]
		}
	}
	summary, err := s.driver.SummarizeContext(ctx, SummarizeRequest{SessionID: sessionID, Model: model, Text: input})

	s.mu.Lock()
	st = s.sessions[sessionID]
	if st == nil {
		s.mu.Unlock()
		return
	}
	st.summarizing = false
	if err != nil || strings.TrimSpace(summary) == "" {
		s.mu.Unlock()
		if err != nil {
			log.Warn("service context summarize failed", "err", err)
		}
		return
	}
	st.summary = summary
	st.summarized = true
	snapshot := s.snapshotLocked(st)
	s.mu.Unlock()

	s.emitState(snapshot)
	s.persistSession(log, sessionID)
	log.Info("service context summarized", "summary_len", len(summary))
}

// tailLines returns the last max lines of text.
func tailLines(text string, max int) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return strings.Join(lines, "\n")
}

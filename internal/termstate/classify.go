// Package termstate classifies terminal output into interrupt-safety
// verdicts and recognizes full-screen programs that need a known exit
// sequence.
package termstate

import (
	"regexp"
	"strings"

	"pkt.systems/shellpilot/schema"
)

// promptTailWindow is how many trailing non-blank lines are checked for a
// shell prompt or a server signature.
const promptTailWindow = 3

// menuTailWindow is how many trailing lines are checked for TUI menu glyphs.
const menuTailWindow = 5

var (
	userHostPrompt = regexp.MustCompile(`[\w.-]+@[\w.-]+\S*\s*[$%#>]\s*$`)
	winPathPrompt  = regexp.MustCompile(`^(?:PS )?[A-Za-z]:\\\S*>\s*$`)
)

// promptSuffixes mark a bare shell prompt at the end of a trimmed line.
var promptSuffixes = []string{"$", "%", "#", ">", "❯"}

var serverSignatures = []string{
	"listening on",
	"listening at",
	"ready in",
	"server running",
	"server started",
	"development server",
	"localhost:",
	"127.0.0.1:",
	"0.0.0.0:",
	"compiled successfully",
	"press ctrl+c",
	"accepting connections",
}

var inputPromptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password[^:]*:\s*$`),
	regexp.MustCompile(`(?i)passphrase[^:]*:\s*$`),
	regexp.MustCompile(`(?i)username[^:]*:\s*$`),
	regexp.MustCompile(`(?i)^login:\s*$`),
	regexp.MustCompile(`(?i)token[^:]*:\s*$`),
	regexp.MustCompile(`(?i)secret[^:]*:\s*$`),
	regexp.MustCompile(`(?i)\(y(es)?/no?\)\??:?\s*$`),
	regexp.MustCompile(`(?i)\[y/n\]:?\s*$`),
	regexp.MustCompile(`(?i)are you sure`),
	regexp.MustCompile(`(?i)continue\?\s*$`),
	regexp.MustCompile(`(?i)press any key`),
	regexp.MustCompile(`(?i)do you want to`),
}

// menuGlyphs mark selectable entries rendered by interactive pickers.
var menuGlyphs = []string{"❯ ", "▸ ", "► ", "( ) ", "(*) ", "[ ] ", "[x] ", "[X] "}

// Classify turns terminal output into an interrupt-safety verdict. Rules
// apply in fixed precedence: idle > server > input_needed > busy, with busy
// as the conservative default.
//
// Known false-negative risk: a full-screen program that prints a localhost
// banner while awaiting a password classifies as server, not input_needed.
// The precedence is kept unconditional on purpose.
func Classify(text string) schema.TermState {
	tail := lastNonBlank(text, promptTailWindow)
	if len(tail) == 0 {
		return schema.TermBusy
	}
	for _, line := range tail {
		if isPromptLine(line) {
			return schema.TermIdle
		}
	}
	for _, line := range tail {
		lower := strings.ToLower(line)
		for _, sig := range serverSignatures {
			if strings.Contains(lower, sig) {
				return schema.TermServer
			}
		}
	}
	last := tail[len(tail)-1]
	for _, pattern := range inputPromptPatterns {
		if pattern.MatchString(last) {
			return schema.TermInputNeeded
		}
	}
	for _, line := range lastLines(text, menuTailWindow) {
		for _, glyph := range menuGlyphs {
			if strings.Contains(line, glyph) {
				return schema.TermInputNeeded
			}
		}
	}
	return schema.TermBusy
}

func isPromptLine(line string) bool {
	trimmed := strings.TrimRight(line, " ")
	if trimmed == "" {
		return false
	}
	if userHostPrompt.MatchString(trimmed) || winPathPrompt.MatchString(trimmed) {
		return true
	}
	for _, suffix := range promptSuffixes {
		if strings.HasSuffix(trimmed, suffix) {
			return true
		}
	}
	return false
}

// lastNonBlank returns up to max trailing non-blank lines, oldest first.
func lastNonBlank(text string, max int) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, max)
	for i := len(lines) - 1; i >= 0 && len(out) < max; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		out = append(out, lines[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// lastLines returns up to max trailing lines, blank or not, oldest first.
func lastLines(text string, max int) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

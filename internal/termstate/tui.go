package termstate

import (
	"context"
	"regexp"
	"time"

	"pkt.systems/shellpilot/schema"
)

// tuiProgram describes one known full-screen program. Low-specificity
// signature sets require two independent matches; a single highly
// distinctive signature is enough on its own.
type tuiProgram struct {
	name       string
	signatures []*regexp.Regexp
	needTwo    bool
}

var tuiPrograms = []tuiProgram{
	{
		name: "vim",
		signatures: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^~\s*$`),
			regexp.MustCompile(`-- (INSERT|VISUAL|REPLACE) --|(?m)^".*"\s+\d+L,\s+\d+B`),
		},
		needTwo: true,
	},
	{
		name:       "nano",
		signatures: []*regexp.Regexp{regexp.MustCompile(`GNU nano`)},
	},
	{
		name:       "less",
		signatures: []*regexp.Regexp{regexp.MustCompile(`\(END\)`)},
	},
	{
		name:       "man",
		signatures: []*regexp.Regexp{regexp.MustCompile(`Manual page \S+\(\d\)`)},
	},
	{
		name: "htop",
		signatures: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*PID\s+USER`),
			regexp.MustCompile(`[Ll]oad average`),
		},
		needTwo: true,
	},
	{
		name: "emacs",
		signatures: []*regexp.Regexp{
			regexp.MustCompile(`M-x\b`),
			regexp.MustCompile(`\*scratch\*|-UUU?:`),
		},
		needTwo: true,
	},
	{
		name:       "python",
		signatures: []*regexp.Regexp{regexp.MustCompile(`(?m)^>>>\s*$`)},
	},
	{
		name:       "node",
		signatures: []*regexp.Regexp{regexp.MustCompile(`Welcome to Node\.js`)},
	},
}

// DetectProgram matches terminal output against the known full-screen
// program table. It returns the program name, or "" when nothing matches.
func DetectProgram(text string) string {
	for _, prog := range tuiPrograms {
		matches := 0
		for _, sig := range prog.signatures {
			if sig.MatchString(text) {
				matches++
			}
		}
		need := 1
		if prog.needTwo {
			need = 2
		}
		if matches >= need {
			return prog.name
		}
	}
	return ""
}

// ExitStep is one entry of a program exit sequence.
type ExitStep struct {
	Keys        string
	Wait        time.Duration
	Description string
}

// genericExitSequence escalates from polite interrupts to a hard quit key.
var genericExitSequence = []ExitStep{
	{Keys: "\x03", Wait: 400 * time.Millisecond, Description: "interrupt"},
	{Keys: "\x03\x03", Wait: 400 * time.Millisecond, Description: "double interrupt"},
	{Keys: "\x04", Wait: 400 * time.Millisecond, Description: "end of input"},
	{Keys: "/exit\r", Wait: 500 * time.Millisecond, Description: "slash exit command"},
	{Keys: "exit\r", Wait: 500 * time.Millisecond, Description: "exit command"},
	{Keys: "\x03\x04", Wait: 400 * time.Millisecond, Description: "interrupt then end of input"},
	{Keys: "q", Wait: 300 * time.Millisecond, Description: "quit key"},
}

// ExitSequence returns the ordered exit steps for a named program, falling
// back to the generic escalating sequence for unknown names.
func ExitSequence(program string) []ExitStep {
	switch program {
	case "vim":
		return []ExitStep{
			{Keys: "\x1b", Wait: 200 * time.Millisecond, Description: "escape to normal mode"},
			{Keys: ":q!\r", Wait: 400 * time.Millisecond, Description: "force quit"},
			{Keys: "\x03", Wait: 400 * time.Millisecond, Description: "interrupt"},
			{Keys: "\x03\x03", Wait: 400 * time.Millisecond, Description: "double interrupt"},
		}
	case "nano":
		return []ExitStep{
			{Keys: "\x18", Wait: 300 * time.Millisecond, Description: "exit"},
			{Keys: "n", Wait: 300 * time.Millisecond, Description: "discard changes"},
		}
	case "less", "man", "htop":
		return []ExitStep{
			{Keys: "q", Wait: 300 * time.Millisecond, Description: "quit key"},
		}
	case "emacs":
		return []ExitStep{
			{Keys: "\x18\x03", Wait: 400 * time.Millisecond, Description: "save-buffers-kill-terminal"},
			{Keys: "\x03", Wait: 400 * time.Millisecond, Description: "interrupt"},
		}
	case "python":
		return []ExitStep{
			{Keys: "exit()\r", Wait: 300 * time.Millisecond, Description: "exit call"},
			{Keys: "\x04", Wait: 300 * time.Millisecond, Description: "end of input"},
		}
	case "node":
		return []ExitStep{
			{Keys: ".exit\r", Wait: 300 * time.Millisecond, Description: "repl exit"},
			{Keys: "\x04", Wait: 300 * time.Millisecond, Description: "end of input"},
		}
	default:
		return genericExitSequence
	}
}

// WriteFunc sends keys to the terminal.
type WriteFunc func(ctx context.Context, keys string) error

// ReadFunc re-reads the terminal's current output.
type ReadFunc func(ctx context.Context) (string, error)

// ExitAttempt reports which exit steps were tried and whether the terminal
// reached an idle prompt.
type ExitAttempt struct {
	Tried  []string
	Exited bool
}

// AttemptExit works through the program's exit sequence, re-reading and
// re-classifying after each step. Success is an idle classification of the
// buffer, preferred over merely failing to re-detect the program: stale
// on-screen artifacts make "still detected" unreliable.
func AttemptExit(ctx context.Context, program string, write WriteFunc, read ReadFunc) (ExitAttempt, error) {
	attempt := ExitAttempt{}
	for _, step := range ExitSequence(program) {
		if err := write(ctx, step.Keys); err != nil {
			return attempt, err
		}
		attempt.Tried = append(attempt.Tried, step.Description)
		select {
		case <-time.After(step.Wait):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
		text, err := read(ctx)
		if err != nil {
			return attempt, err
		}
		if Classify(text) == schema.TermIdle {
			attempt.Exited = true
			return attempt, nil
		}
	}
	return attempt, nil
}

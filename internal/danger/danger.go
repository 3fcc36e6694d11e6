// Package danger flags shell commands whose effects are destructive or hard
// to reverse, so the orchestrator can demand double confirmation before
// letting a model-issued command reach the terminal.
package danger

import (
	"regexp"
	"strings"
)

// pattern pairs a compiled check with a short reason for event payloads and
// audit logs.
type pattern struct {
	re     *regexp.Regexp
	reason string
}

// patterns are checked in order; the first match wins.
var patterns = []pattern{
	{regexp.MustCompile(`(?i)\brm\s+(-[a-z]*\s+)*-[a-z]*[rf][a-z]*\b`), "recursive or forced deletion"},
	{regexp.MustCompile(`(?i)\bsudo\s+rm\b`), "privilege-escalated deletion"},
	{regexp.MustCompile(`(?i)\bmkfs(\.\w+)?\b`), "filesystem format"},
	{regexp.MustCompile(`(?i)\bdd\s+[^|;]*\bof=/dev/`), "raw device write"},
	{regexp.MustCompile(`>\s*/dev/(sd[a-z]|nvme\d+n\d+|mmcblk\d+)`), "redirect to block device"},
	{regexp.MustCompile(`(?i)\b(shutdown|reboot|poweroff|halt)\b`), "power-state change"},
	{regexp.MustCompile(`\binit\s+[06]\b`), "power-state change"},
	{regexp.MustCompile(`(?i)\bchmod\s+(-[a-z]+\s+)*777\b`), "world-writable permissions"},
	{regexp.MustCompile(`(?i)\bchown\s+(-[a-z]+\s+)*-r\b|\bchown\s+-[a-z]*r[a-z]*\b`), "recursive ownership change"},
	{regexp.MustCompile(`(?i)\b(drop\s+(table|database|schema)|truncate\s+table)\b`), "destructive SQL"},
	{regexp.MustCompile(`(?i)\bgit\s+push\s+[^|;]*(--force\b|-f\b)`), "forced git push"},
	{regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`), "hard git reset"},
	{regexp.MustCompile(`(?i)\bgit\s+clean\s+-[a-z]*f`), "forced git clean"},
	{regexp.MustCompile(`(?i)\bkill(all)?\s+(-9\s+)?-1\b`), "mass process termination"},
	{regexp.MustCompile(`(?i)\bpkill\s+-9\s+\.`), "mass process termination"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`), "fork bomb"},
	{regexp.MustCompile(`(?i)\b(curl|wget)\b[^|;]*\|\s*(sudo\s+)?(ba|z)?sh\b`), "remote script piped to shell"},
}

// Dangerous reports whether the command matches a destructive pattern.
func Dangerous(command string) bool {
	_, found := Match(command)
	return found
}

// Match returns the reason for the first matching destructive pattern.
func Match(command string) (string, bool) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return "", false
	}
	for _, p := range patterns {
		if p.re.MatchString(trimmed) {
			return p.reason, true
		}
	}
	return "", false
}

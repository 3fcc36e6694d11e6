// Package cleanview turns raw terminal byte streams into plain text fit for
// a language model: control sequences are replayed against a virtual grid
// instead of stripped, so carriage-return progress bars and cursor moves
// resolve to what a human would actually see.
package cleanview

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

const (
	tabStop = 8
	// repeatThreshold collapses runs of identical lines at or above this
	// count into a single line plus a marker.
	repeatThreshold = 3
	// garbledMinLen and garbledRatio gate the mojibake heuristic: short
	// lines and ordinary punctuation-heavy code lines must pass through.
	garbledMinLen = 16
	garbledRatio  = 0.6
)

// cell holds one grid position. Wide runes occupy their left cell and leave
// the continuation cell zero.
type cell struct {
	r rune
}

type grid struct {
	rows [][]cell
	row  int
	col  int
}

func (g *grid) ensureRow() {
	for len(g.rows) <= g.row {
		g.rows = append(g.rows, nil)
	}
}

func (g *grid) put(r rune) {
	g.ensureRow()
	w := runewidth.RuneWidth(r)
	if w <= 0 {
		return
	}
	line := g.rows[g.row]
	for len(line) < g.col+w {
		line = append(line, cell{r: ' '})
	}
	line[g.col] = cell{r: r}
	for i := 1; i < w; i++ {
		line[g.col+i] = cell{}
	}
	g.rows[g.row] = line
	g.col += w
}

func (g *grid) eraseLine(mode int) {
	g.ensureRow()
	line := g.rows[g.row]
	switch mode {
	case 0: // cursor to end
		if g.col < len(line) {
			g.rows[g.row] = line[:g.col]
		}
	case 1: // start to cursor
		for i := 0; i < g.col && i < len(line); i++ {
			line[i] = cell{r: ' '}
		}
	case 2:
		g.rows[g.row] = nil
	}
}

func (g *grid) eraseDisplay(mode int) {
	switch mode {
	case 0:
		g.eraseLine(0)
		if g.row+1 < len(g.rows) {
			g.rows = g.rows[:g.row+1]
		}
	case 1:
		for i := 0; i < g.row && i < len(g.rows); i++ {
			g.rows[i] = nil
		}
		g.eraseLine(1)
	case 2, 3:
		g.rows = nil
		g.row, g.col = 0, 0
	}
}

func (g *grid) render() string {
	lines := make([]string, len(g.rows))
	for i, row := range g.rows {
		var b strings.Builder
		for _, c := range row {
			if c.r != 0 {
				b.WriteRune(c.r)
			}
		}
		lines[i] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Reconstruct replays raw terminal output against a virtual grid and renders
// the final visible text. Unsupported sequences are skipped rather than
// leaked into the output.
func Reconstruct(raw string) string {
	g := &grid{}
	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\n':
			g.row++
			g.col = 0
		case '\r':
			g.col = 0
		case '\b':
			if g.col > 0 {
				g.col--
			}
		case '\t':
			g.col = (g.col/tabStop + 1) * tabStop
		case 0x1b:
			i += consumeEscape(g, runes[i:]) - 1
		default:
			if r >= 0x20 || r == 0 {
				if r != 0 {
					g.put(r)
				}
			}
		}
	}
	return g.render()
}

// consumeEscape interprets the escape sequence at the start of runes and
// returns how many runes it spans (at least 1).
func consumeEscape(g *grid, runes []rune) int {
	if len(runes) < 2 {
		return 1
	}
	switch runes[1] {
	case '[':
		return 2 + consumeCSI(g, runes[2:])
	case ']':
		return 2 + consumeOSC(runes[2:])
	case '(', ')':
		if len(runes) >= 3 {
			return 3
		}
		return 2
	default:
		return 2
	}
}

func consumeCSI(g *grid, runes []rune) int {
	var params strings.Builder
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r >= '0' && r <= '9') || r == ';' || r == '?' {
			params.WriteRune(r)
			continue
		}
		applyCSI(g, params.String(), r)
		return i + 1
	}
	return len(runes)
}

func applyCSI(g *grid, params string, final rune) {
	n := func(def int) int {
		if params == "" {
			return def
		}
		v, err := strconv.Atoi(strings.SplitN(params, ";", 2)[0])
		if err != nil {
			return def
		}
		return v
	}
	switch final {
	case 'K':
		g.eraseLine(n(0))
	case 'J':
		g.eraseDisplay(n(0))
	case 'A':
		g.row -= n(1)
		if g.row < 0 {
			g.row = 0
		}
	case 'B':
		g.row += n(1)
	case 'C':
		g.col += n(1)
	case 'D':
		g.col -= n(1)
		if g.col < 0 {
			g.col = 0
		}
	case 'G':
		g.col = n(1) - 1
		if g.col < 0 {
			g.col = 0
		}
	case 'H', 'f':
		parts := strings.SplitN(params, ";", 2)
		row, col := 1, 1
		if len(parts) > 0 && parts[0] != "" {
			if v, err := strconv.Atoi(parts[0]); err == nil {
				row = v
			}
		}
		if len(parts) > 1 && parts[1] != "" {
			if v, err := strconv.Atoi(parts[1]); err == nil {
				col = v
			}
		}
		g.row, g.col = row-1, col-1
		if g.row < 0 {
			g.row = 0
		}
		if g.col < 0 {
			g.col = 0
		}
	}
	// SGR (m) and everything else changes no visible text.
}

// consumeOSC skips to BEL or ST.
func consumeOSC(runes []rune) int {
	for i := 0; i < len(runes); i++ {
		if runes[i] == 0x07 {
			return i + 1
		}
		if runes[i] == 0x1b && i+1 < len(runes) && runes[i+1] == '\\' {
			return i + 2
		}
	}
	return len(runes)
}

// CollapseRepeats folds runs of identical non-blank lines into one line
// followed by a repetition marker.
func CollapseRepeats(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		run := j - i
		if run >= repeatThreshold && strings.TrimSpace(lines[i]) != "" {
			out = append(out, lines[i], fmt.Sprintf("[repeated %d times]", run))
		} else {
			out = append(out, lines[i:j]...)
		}
		i = j
	}
	return strings.Join(out, "\n")
}

// CollapseGarbled replaces lines that are mostly non-alphanumeric symbols,
// the typical residue of binary output or box-drawing UIs, with a marker.
func CollapseGarbled(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if garbled(line) {
			lines[i] = "[garbled output omitted]"
		}
	}
	return strings.Join(lines, "\n")
}

func garbled(line string) bool {
	runes := []rune(strings.TrimSpace(line))
	if len(runes) < garbledMinLen {
		return false
	}
	symbols := 0
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ' ' || r == '.' || r == ',' || r == ':' || r == '/' || r == '-' || r == '_':
		default:
			symbols++
		}
	}
	return float64(symbols)/float64(len(runes)) > garbledRatio
}

// TruncateBlock keeps the first head and last tail lines of an oversized
// block, marking the omission in between.
func TruncateBlock(text string, head, tail int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= head+tail {
		return text
	}
	omitted := len(lines) - head - tail
	out := make([]string, 0, head+tail+1)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("[... %d lines omitted ...]", omitted))
	out = append(out, lines[len(lines)-tail:]...)
	return strings.Join(out, "\n")
}

// Clean is the full pipeline: replay, collapse repeats, collapse garbage.
func Clean(raw string) string {
	return CollapseGarbled(CollapseRepeats(Reconstruct(raw)))
}

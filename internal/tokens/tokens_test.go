package tokens

import (
	"strings"
	"testing"
)

func TestCountScalesWithText(t *testing.T) {
	if got := Count(""); got != 0 {
		t.Fatalf("Count(empty) = %d", got)
	}
	short := Count("hello world")
	long := Count(strings.Repeat("hello world ", 100))
	if short <= 0 {
		t.Fatalf("Count(short) = %d", short)
	}
	if long <= short {
		t.Fatalf("expected long text to cost more tokens: %d vs %d", long, short)
	}
}

func TestApproxFallback(t *testing.T) {
	if got := approx("abcdefgh"); got != 2 {
		t.Fatalf("approx = %d, want 2", got)
	}
}

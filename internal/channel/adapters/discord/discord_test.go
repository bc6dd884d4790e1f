package discord

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 2000); got != "short" {
		t.Fatalf("truncate passthrough = %q", got)
	}

	long := strings.Repeat("a", 2500)
	got := truncate(long, 2000)
	if len(got) != 2000 {
		t.Fatalf("truncated length = %d, want 2000", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("truncated text must end with ellipsis, got %q", got[len(got)-8:])
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// Pad so the cut position lands inside a multi-byte rune.
	long := strings.Repeat("a", 1996) + strings.Repeat("ねこ", 50)
	got := truncate(long, 2000)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got[1990:])
	}
	if len(got) > 2000 {
		t.Fatalf("truncated length = %d, exceeds the cap", len(got))
	}
}

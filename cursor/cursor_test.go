package cursor

import (
	"strings"
	"testing"
)

func TestAdvance(t *testing.T) {
	start := Position{Line: 1, Character: 2}
	tests := []struct {
		name string
		text string
		want Position
	}{
		{"empty", "", Position{Line: 1, Character: 2}},
		{"no newline", "test_text", Position{Line: 1, Character: 11}},
		{"one newline", "test\ntest2", Position{Line: 2, Character: 5}},
		{"many newlines", "test\ntest2\ntest3\n", Position{Line: 4, Character: 0}},
		{"only newline", "\n", Position{Line: 2, Character: 0}},
		{"leading newline", "\nab", Position{Line: 2, Character: 2}},
		{"consecutive newlines", "\n\n\n", Position{Line: 4, Character: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Advance(tt.text, start); got != tt.want {
				t.Errorf("Advance(%q, %+v) = %+v, want %+v", tt.text, start, got, tt.want)
			}
		})
	}
}

func TestAdvanceLineIndependentOfCharacter(t *testing.T) {
	text := "a\nbc\ndef"
	for _, ch := range []uint32{0, 1, 40, 1000} {
		got := Advance(text, Position{Line: 7, Character: ch})
		if got != (Position{Line: 9, Character: 3}) {
			t.Errorf("start character %d: got %+v", ch, got)
		}
	}
}

func TestAdvanceCountsUTF16Units(t *testing.T) {
	// é is one UTF-16 unit, 😀 is a surrogate pair.
	got := Advance("é😀", Position{})
	if got != (Position{Line: 0, Character: 3}) {
		t.Errorf("expected character 3, got %+v", got)
	}
	got = Advance("x\n😀z", Position{Line: 2, Character: 9})
	if got != (Position{Line: 3, Character: 3}) {
		t.Errorf("expected 3:3, got %+v", got)
	}
}

// Feeding a text chunk by chunk must land where inserting it whole would.
func TestAdvanceChunkedMatchesWhole(t *testing.T) {
	text := "def add(a, b):\n    return a + b\n\nprint(add(1, 2))"
	start := Position{Line: 5, Character: 4}
	want := Advance(text, start)

	for size := 1; size <= len(text); size++ {
		pos := start
		for i := 0; i < len(text); i += size {
			end := min(i+size, len(text))
			pos = Advance(text[i:end], pos)
		}
		if pos != want {
			t.Fatalf("chunk size %d: got %+v, want %+v", size, pos, want)
		}
	}
	if want.Line != start.Line+uint32(strings.Count(text, "\n")) {
		t.Errorf("unexpected line %d", want.Line)
	}
}

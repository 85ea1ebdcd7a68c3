// Package cursor tracks where the next streamed chunk lands in a document.
package cursor

import (
	"strings"
	"unicode/utf16"
)

// Position is a zero-based line/character location in a document.
// Character counts UTF-16 code units, as LSP positions do.
type Position struct {
	Line      uint32
	Character uint32
}

// Advance returns the position immediately after text, given that text was
// inserted at start. When text contains line breaks the result sits on the
// last inserted line and start.Character no longer applies.
func Advance(text string, start Position) Position {
	last := strings.LastIndexByte(text, '\n')
	if last < 0 {
		start.Character += width(text)
		return start
	}
	return Position{
		Line:      start.Line + uint32(strings.Count(text, "\n")),
		Character: width(text[last+1:]),
	}
}

func width(s string) uint32 {
	var n uint32
	for _, r := range s {
		n += uint32(utf16.RuneLen(r))
	}
	return n
}

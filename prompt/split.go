package prompt

import (
	"strings"
	"unicode"
)

// commentMarker opens an instruction line.
const commentMarker = "#"

// SplitInstructions separates the leading comment lines of a selection (the
// instructions) from the rest (the code) and formats both as
//
//	INSTRUCTIONS
//	<instruction lines>
//	CODE
//	<code lines>
//
// The boundary is the first line that is empty or not a comment. When every
// line is a comment the last line is the boundary, so it lands in CODE.
func SplitInstructions(text string) string {
	lines := strings.Split(strings.TrimLeftFunc(text, unicode.IsSpace), "\n")

	split := len(lines) - 1
	for i, line := range lines {
		if !isInstruction(line) {
			split = i
			break
		}
	}

	var sb strings.Builder
	sb.WriteString("INSTRUCTIONS\n")
	sb.WriteString(strings.Join(lines[:split], "\n"))
	sb.WriteString("\nCODE\n")
	sb.WriteString(strings.Join(lines[split:], "\n"))
	return sb.String()
}

func isInstruction(line string) bool {
	return line != "" && strings.HasPrefix(strings.TrimLeftFunc(line, unicode.IsSpace), commentMarker)
}

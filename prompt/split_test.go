package prompt

import (
	"strings"
	"testing"
)

func TestSplitInstructions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "instructions then code",
			input: "\n# do stuff\n# but actually\ncode\ncode again\n",
			want:  "INSTRUCTIONS\n# do stuff\n# but actually\nCODE\ncode\ncode again\n",
		},
		{
			name:  "blank line before code",
			input: "\n# do stuff\n# but actually\n\ncode\ncode again\n",
			want:  "INSTRUCTIONS\n# do stuff\n# but actually\nCODE\n\ncode\ncode again\n",
		},
		{
			name:  "no code",
			input: "\n# do stuff\n# but actually\n",
			want:  "INSTRUCTIONS\n# do stuff\n# but actually\nCODE\n",
		},
		{
			name:  "no instructions",
			input: "  def f():\n    return 1\n",
			want:  "INSTRUCTIONS\n\nCODE\ndef f():\n    return 1\n",
		},
		{
			name:  "empty",
			input: "",
			want:  "INSTRUCTIONS\n\nCODE\n",
		},
		{
			name:  "whitespace only",
			input: " \n\t\n",
			want:  "INSTRUCTIONS\n\nCODE\n",
		},
		{
			name:  "indented comments count",
			input: "# a\n    # b\nx = 1",
			want:  "INSTRUCTIONS\n# a\n    # b\nCODE\nx = 1",
		},
		{
			// Without a trailing line break the final comment is the boundary.
			name:  "comments only without trailing newline",
			input: "# a\n# b",
			want:  "INSTRUCTIONS\n# a\nCODE\n# b",
		},
		{
			name:  "single comment line",
			input: "# only",
			want:  "INSTRUCTIONS\n\nCODE\n# only",
		},
		{
			name:  "comment after code stays in code",
			input: "x = 1\n# later",
			want:  "INSTRUCTIONS\n\nCODE\nx = 1\n# later",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitInstructions(tt.input); got != tt.want {
				t.Errorf("SplitInstructions(%q)\n got: %q\nwant: %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitInstructionsNoCommentsKeepsWholeInput(t *testing.T) {
	input := "for i in range(3):\n    print(i)\n"
	got := SplitInstructions(input)
	code := strings.TrimPrefix(got, "INSTRUCTIONS\n\nCODE\n")
	if code != input {
		t.Errorf("expected code section %q, got %q", input, code)
	}
}

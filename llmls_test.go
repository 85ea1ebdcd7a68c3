package llmls

import (
	"encoding/json"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// decodeArgs simulates the client echoing arguments back as generic JSON.
func decodeArgs(t *testing.T, args []any) []any {
	t.Helper()
	data, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	var out []any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestParseCommandArgsRoundTrip(t *testing.T) {
	in := &CommandArgs{
		URI: "file:///tmp/a.py",
		Range: protocol.Range{
			Start: protocol.Position{Line: 3, Character: 0},
			End:   protocol.Position{Line: 4, Character: 7},
		},
		Text: "# do stuff\ncode",
	}

	got, err := ParseCommandArgs(decodeArgs(t, in.Arguments()))
	if err != nil {
		t.Fatal(err)
	}
	if got.URI != in.URI {
		t.Errorf("expected uri %q, got %q", in.URI, got.URI)
	}
	if got.Range != in.Range {
		t.Errorf("expected range %+v, got %+v", in.Range, got.Range)
	}
	if got.Text != in.Text {
		t.Errorf("expected text %q, got %q", in.Text, got.Text)
	}
}

func TestParseCommandArgsWrongCount(t *testing.T) {
	_, err := ParseCommandArgs([]any{"file:///a"})
	if err == nil {
		t.Fatal("expected error for missing arguments")
	}
	if !strings.Contains(err.Error(), "got 1") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestParseCommandArgsBadRange(t *testing.T) {
	_, err := ParseCommandArgs([]any{"file:///a", "not a range", "text"})
	if err == nil {
		t.Fatal("expected error for bad range")
	}
	if !strings.Contains(err.Error(), "range") {
		t.Errorf("expected range in error, got %v", err)
	}
}

func TestParseCommandArgsEmptyURI(t *testing.T) {
	_, err := ParseCommandArgs([]any{"", map[string]any{}, "text"})
	if err == nil {
		t.Fatal("expected error for empty uri")
	}
}

func TestParseCancelArgs(t *testing.T) {
	uri, err := ParseCancelArgs([]any{"file:///a.py"})
	if err != nil {
		t.Fatal(err)
	}
	if uri != "file:///a.py" {
		t.Errorf("expected file:///a.py, got %q", uri)
	}
	if _, err := ParseCancelArgs(nil); err == nil {
		t.Error("expected error for no arguments")
	}
}

func TestKindForCommand(t *testing.T) {
	tests := []struct {
		command string
		kind    Kind
		ok      bool
	}{
		{CommandComplete, KindComplete, true},
		{CommandInstruct, KindInstruct, true},
		{CommandCancel, "", false},
		{"something.else", "", false},
	}
	for _, tt := range tests {
		kind, ok := KindForCommand(tt.command)
		if kind != tt.kind || ok != tt.ok {
			t.Errorf("KindForCommand(%q) = %q, %v; want %q, %v", tt.command, kind, ok, tt.kind, tt.ok)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Code: CodeAPIError, Message: "boom"}
	if err.Error() != "api_error: boom" {
		t.Errorf("unexpected error string %q", err.Error())
	}
}

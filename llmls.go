// Package llmls defines the command and request types shared by the llmls
// language server, its generation engine, and the repl.
package llmls

import (
	"encoding/json"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Commands registered with the client through workspace/executeCommand.
const (
	CommandComplete = "gay.maddie.complete"
	CommandInstruct = "gay.maddie.instructreplace"
	// CommandCancel stops the stream running for a document. Arguments: [uri].
	CommandCancel = "gay.maddie.cancel"
)

// Commands lists every command the server advertises.
var Commands = []string{CommandComplete, CommandInstruct, CommandCancel}

// Kind selects the system prompt and user message layout.
type Kind string

const (
	KindComplete Kind = "complete"
	KindInstruct Kind = "instruct"
)

// KindForCommand maps a streaming command to its prompt kind.
func KindForCommand(command string) (Kind, bool) {
	switch command {
	case CommandComplete:
		return KindComplete, true
	case CommandInstruct:
		return KindInstruct, true
	}
	return "", false
}

// Request is what the generation engine consumes.
type Request struct {
	// Kind selects the prompt.
	Kind Kind `json:"kind" toml:"kind"`
	// Text is the selected document text.
	Text string `json:"text" toml:"text"`
	// LanguageID is the document's LSP language identifier, if known.
	LanguageID string `json:"language_id,omitempty" toml:"language_id,omitempty"`
}

// CommandArgs are the positional arguments [uri, range, text] attached to
// the code actions and echoed back by the client on execution.
type CommandArgs struct {
	URI   protocol.DocumentUri
	Range protocol.Range
	Text  string
}

// Arguments returns args in the positional form sent to the client.
func (a *CommandArgs) Arguments() []any {
	return []any{a.URI, a.Range, a.Text}
}

// ParseCommandArgs decodes the positional [uri, range, text] arguments.
// Clients deliver them as generic JSON values, so each one is re-decoded.
func ParseCommandArgs(args []any) (*CommandArgs, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("expected 3 arguments [uri, range, text], got %d", len(args))
	}
	var out CommandArgs
	if err := redecode(args[0], &out.URI); err != nil {
		return nil, fmt.Errorf("invalid uri argument: %w", err)
	}
	if out.URI == "" {
		return nil, fmt.Errorf("invalid uri argument: empty")
	}
	if err := redecode(args[1], &out.Range); err != nil {
		return nil, fmt.Errorf("invalid range argument: %w", err)
	}
	if err := redecode(args[2], &out.Text); err != nil {
		return nil, fmt.Errorf("invalid text argument: %w", err)
	}
	return &out, nil
}

// ParseCancelArgs decodes the [uri] argument of CommandCancel.
func ParseCancelArgs(args []any) (protocol.DocumentUri, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected 1 argument [uri], got %d", len(args))
	}
	var uri protocol.DocumentUri
	if err := redecode(args[0], &uri); err != nil {
		return "", fmt.Errorf("invalid uri argument: %w", err)
	}
	return uri, nil
}

func redecode(v any, out any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Error describes a failure reported back to the user.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "not_configured", "api_error").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Error codes.
const (
	CodeNotConfigured    = "not_configured"
	CodeAPIError         = "api_error"
	CodeInvalidArguments = "invalid_arguments"
)

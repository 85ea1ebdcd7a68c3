package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	llmls "github.com/Paranoid-AF/llmls"
	"github.com/Paranoid-AF/llmls/cursor"
	"github.com/Paranoid-AF/llmls/generate"
	"github.com/Paranoid-AF/llmls/prompt"
)

const serverName = "llmls"

// Client-bound methods.
const (
	methodApplyEdit   = "workspace/applyEdit"
	methodShowMessage = "window/showMessage"
)

// Code action titles.
const (
	titleComplete = "LLM Autocomplete"
	titleInstruct = "LLM Instruct"
)

var errEditRejected = errors.New("client rejected edit")

// Completer opens completion streams for requests.
type Completer interface {
	Open(ctx context.Context, req *llmls.Request) (generate.Stream, error)
	Config() *llmls.Config
	Close()
}

// EngineFactory builds a Completer from the client settings (may be nil).
type EngineFactory func(settings any) Completer

// Client is the part of the LSP client the server drives while streaming.
type Client interface {
	// ApplyEdit sends workspace/applyEdit and reports whether it was applied.
	ApplyEdit(label string, edit protocol.WorkspaceEdit) (bool, error)
	ShowMessage(typ protocol.MessageType, message string)
}

// Server implements the llmls language server.
type Server struct {
	docs    *Documents
	streams *Streams
	factory EngineFactory
	exit    func(code int)

	mu       sync.RWMutex
	engine   Completer
	settings any

	running sync.WaitGroup
}

// NewServer creates a server whose engine is built by factory.
func NewServer(factory EngineFactory) *Server {
	return &Server{
		docs:    NewDocuments(),
		streams: NewStreams(),
		factory: factory,
		exit:    os.Exit,
		engine:  factory(nil),
	}
}

// defaultEngine loads the on-disk config, applies client settings on top
// and builds a generation engine from the result.
func defaultEngine(settings any) Completer {
	cfg, err := llmls.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = llmls.DefaultConfig()
	}
	withSettings, err := llmls.ApplySettings(cfg, settings)
	if err != nil {
		slog.Warn("ignoring invalid client settings", "error", err)
		withSettings = cfg
	}
	return generate.NewEngineWithConfig(withSettings, prompt.LoadBuilder())
}

// Handler returns the glsp handler serving s.
func (s *Server) Handler() *protocol.Handler {
	return &protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		Exit:                            s.exitNotification,
		SetTrace:                        s.setTrace,
		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,
		WorkspaceExecuteCommand:         s.workspaceExecuteCommand,
		TextDocumentDidOpen:             s.textDocumentDidOpen,
		TextDocumentDidChange:           s.textDocumentDidChange,
		TextDocumentDidClose:            s.textDocumentDidClose,
		TextDocumentCodeAction:          s.textDocumentCodeAction,
	}
}

// Close cancels running streams, waits for them and closes the engine.
func (s *Server) Close() {
	s.streams.Close()
	s.running.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
}

func (s *Server) currentEngine() Completer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// setSettings stores client settings and rebuilds the engine with them.
func (s *Server) setSettings(settings any) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.reloadEngine()
}

// reloadEngine rebuilds the engine from the current config and settings.
// Running streams keep the engine they started with.
func (s *Server) reloadEngine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		s.engine.Close()
	}
	s.engine = s.factory(s.settings)
	slog.Info("engine reloaded")
}

func (s *Server) initialize(_ *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if params.ClientInfo != nil {
		slog.Info("initialize", "client", params.ClientInfo.Name)
	}
	if params.InitializationOptions != nil {
		s.setSettings(params.InitializationOptions)
	}

	trueBool := true
	syncFull := protocol.TextDocumentSyncKindFull
	capabilities := protocol.ServerCapabilities{
		TextDocumentSync: &protocol.TextDocumentSyncOptions{
			OpenClose: &trueBool,
			Change:    &syncFull,
		},
		CodeActionProvider: &protocol.CodeActionOptions{
			CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionKindSource},
		},
		ExecuteCommandProvider: &protocol.ExecuteCommandOptions{
			Commands: llmls.Commands,
		},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &Version,
		},
	}, nil
}

func (s *Server) initialized(_ *glsp.Context, _ *protocol.InitializedParams) error {
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	slog.Info("shutting down")
	s.streams.CancelAll()
	return nil
}

func (s *Server) exitNotification(_ *glsp.Context) error {
	s.Close()
	s.exit(0)
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) workspaceDidChangeConfiguration(_ *glsp.Context, params *protocol.DidChangeConfigurationParams) error {
	slog.Info("workspace/didChangeConfiguration")
	s.setSettings(params.Settings)
	return nil
}

func (s *Server) textDocumentDidOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := params.TextDocument
	slog.Debug("textDocument/didOpen", "uri", doc.URI, "language", doc.LanguageID)
	s.docs.Open(doc.URI, doc.LanguageID, doc.Text)
	return nil
}

func (s *Server) textDocumentDidChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.docs.Change(params.TextDocument.URI, params.ContentChanges)
	return nil
}

func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	slog.Debug("textDocument/didClose", "uri", params.TextDocument.URI)
	s.docs.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) textDocumentCodeAction(_ *glsp.Context, params *protocol.CodeActionParams) (any, error) {
	return s.codeActions(params.TextDocument.URI, params.Range, params.Context.Only), nil
}

// codeActions offers the streaming commands for the selected text.
func (s *Server) codeActions(uri protocol.DocumentUri, rng protocol.Range, only []protocol.CodeActionKind) []protocol.CodeAction {
	actions := []protocol.CodeAction{}
	if !acceptsSource(only) {
		return actions
	}
	text, ok := s.docs.TextIn(uri, rng)
	if !ok {
		slog.Debug("code action for unknown document", "uri", uri)
		return actions
	}

	args := (&llmls.CommandArgs{URI: uri, Range: rng, Text: text}).Arguments()
	kind := protocol.CodeActionKindSource
	for _, a := range []struct{ title, command string }{
		{titleComplete, llmls.CommandComplete},
		{titleInstruct, llmls.CommandInstruct},
	} {
		actions = append(actions, protocol.CodeAction{
			Title: a.title,
			Kind:  &kind,
			Command: &protocol.Command{
				Title:     a.title,
				Command:   a.command,
				Arguments: args,
			},
		})
	}
	return actions
}

// acceptsSource reports whether the client's "only" filter admits source actions.
func acceptsSource(only []protocol.CodeActionKind) bool {
	if len(only) == 0 {
		return true
	}
	for _, k := range only {
		if k == protocol.CodeActionKindSource {
			return true
		}
	}
	return false
}

func (s *Server) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	return nil, s.executeCommand(&glspClient{ctx: ctx}, params.Command, params.Arguments)
}

// executeCommand starts streaming for the complete and instruct commands and
// returns without waiting; edits are applied from a background goroutine.
// Unknown commands are ignored.
func (s *Server) executeCommand(client Client, command string, arguments []any) error {
	slog.Info("workspace/executeCommand", "command", command)

	if command == llmls.CommandCancel {
		uri, err := llmls.ParseCancelArgs(arguments)
		if err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}
		if !s.streams.Cancel(uri) {
			slog.Debug("no stream to cancel", "uri", uri)
		}
		return nil
	}

	kind, ok := llmls.KindForCommand(command)
	if !ok {
		return nil
	}
	args, err := llmls.ParseCommandArgs(arguments)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	engine := s.currentEngine()
	if engine == nil {
		return fmt.Errorf("%s: server is shutting down", command)
	}

	req := &llmls.Request{
		Kind:       kind,
		Text:       args.Text,
		LanguageID: s.docs.LanguageID(args.URI),
	}
	run := s.streams.Start(args.URI, engine.Config().StreamTimeout())

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		defer s.streams.Finish(args.URI, run)
		// The superseded stream may still be inside ApplyEdit.
		if run.prev != nil {
			<-run.prev
		}
		if run.ctx.Err() != nil {
			slog.Info("stream cancelled before start", "stream", run.id, "uri", args.URI)
			return
		}
		s.stream(run.ctx, run.id, client, engine, args, req)
	}()
	return nil
}

// stream replaces args.Range with the model output: it clears the range,
// then inserts each chunk at the cursor and advances the cursor past it.
func (s *Server) stream(ctx context.Context, id string, client Client, engine Completer, args *llmls.CommandArgs, req *llmls.Request) {
	log := slog.With("stream", id, "uri", args.URI, "kind", req.Kind)

	stream, err := engine.Open(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("stream cancelled before start")
			return
		}
		log.Error("failed to open stream", "error", err)
		client.ShowMessage(protocol.MessageTypeError, serverName+": "+err.Error())
		return
	}
	defer stream.Close()

	label := serverName + " " + string(req.Kind) + " " + id
	if err := applyText(client, label, args.URI, args.Range, ""); err != nil {
		log.Warn("failed to clear selection", "error", err)
		return
	}

	pos := fromProtocol(args.Range.Start)
	chunks := 0
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info("stream cancelled", "chunks", chunks)
				return
			}
			log.Error("stream error", "error", err, "chunks", chunks)
			client.ShowMessage(protocol.MessageTypeError, serverName+": stream failed: "+err.Error())
			return
		}
		if ctx.Err() != nil {
			log.Info("stream cancelled", "chunks", chunks)
			return
		}

		at := toProtocol(pos)
		if err := applyText(client, label, args.URI, protocol.Range{Start: at, End: at}, chunk); err != nil {
			log.Warn("stopping stream", "error", err, "chunks", chunks)
			return
		}
		pos = cursor.Advance(chunk, pos)
		chunks++
	}
	log.Info("stream finished", "chunks", chunks, "end_line", pos.Line, "end_character", pos.Character)
}

// applyText replaces rng in uri with text.
func applyText(client Client, label string, uri protocol.DocumentUri, rng protocol.Range, text string) error {
	edit := protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentUri][]protocol.TextEdit{
			uri: {{Range: rng, NewText: text}},
		},
	}
	slog.Debug("applying workspace edit", "uri", uri, "range", rng, "text", text)
	applied, err := client.ApplyEdit(label, edit)
	if err != nil {
		return err
	}
	if !applied {
		return errEditRejected
	}
	return nil
}

func fromProtocol(p protocol.Position) cursor.Position {
	return cursor.Position{Line: p.Line, Character: p.Character}
}

func toProtocol(p cursor.Position) protocol.Position {
	return protocol.Position{Line: p.Line, Character: p.Character}
}

// glspClient sends requests to the client over the glsp connection.
type glspClient struct {
	ctx *glsp.Context
}

func (c *glspClient) ApplyEdit(label string, edit protocol.WorkspaceEdit) (bool, error) {
	var result struct {
		Applied       bool    `json:"applied"`
		FailureReason *string `json:"failureReason,omitempty"`
	}
	c.ctx.Call(methodApplyEdit, protocol.ApplyWorkspaceEditParams{Label: &label, Edit: edit}, &result)
	if !result.Applied && result.FailureReason != nil {
		return false, fmt.Errorf("%w: %s", errEditRejected, *result.FailureReason)
	}
	return result.Applied, nil
}

func (c *glspClient) ShowMessage(typ protocol.MessageType, message string) {
	c.ctx.Notify(methodShowMessage, protocol.ShowMessageParams{Type: typ, Message: message})
}

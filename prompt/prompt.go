// Package prompt renders the system prompts and user messages sent to the
// completion endpoint.
package prompt

import (
	"log/slog"
	"os"
	"strings"
	"text/template"

	llmls "github.com/Paranoid-AF/llmls"
	defaults "github.com/Paranoid-AF/llmls/default"
)

// Chat roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message.
type Message struct {
	Role    string `toml:"role"`
	Content string `toml:"content"`
}

// Data holds the data passed to the prompt templates.
type Data struct {
	Language string
}

// Builder renders prompts, preferring custom templates when set.
type Builder struct {
	custom map[llmls.Kind]string
}

// NewBuilder creates a builder with optional custom template sources.
// Empty sources fall back to the embedded defaults.
func NewBuilder(complete, instruct string) *Builder {
	return &Builder{custom: map[llmls.Kind]string{
		llmls.KindComplete: complete,
		llmls.KindInstruct: instruct,
	}}
}

// LoadBuilder creates a builder from the custom prompt files in the config dir.
func LoadBuilder() *Builder {
	return NewBuilder(
		loadCustomPrompt(llmls.CompletePromptPath()),
		loadCustomPrompt(llmls.InstructPromptPath()),
	)
}

// loadCustomPrompt returns the file's content, or "" if it cannot be read.
func loadCustomPrompt(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	slog.Info("loaded custom prompt", "path", path)
	return string(data)
}

func defaultTemplate(kind llmls.Kind) string {
	if kind == llmls.KindInstruct {
		return defaults.InstructPrompt
	}
	return defaults.CompletePrompt
}

// System renders the system prompt for kind.
func (b *Builder) System(kind llmls.Kind, data Data) string {
	def := defaultTemplate(kind)
	src := b.custom[kind]
	if src == "" {
		src = def
	}

	out, err := render(src, data)
	if err != nil && src != def {
		slog.Warn("failed to render custom prompt, falling back to default", "kind", kind, "error", err)
		out, err = render(def, data)
	}
	if err != nil {
		slog.Error("failed to render default prompt", "kind", kind, "error", err)
		return def
	}
	return strings.TrimRight(out, " \t\n")
}

func render(src string, data Data) (string, error) {
	t, err := template.New("prompt").Parse(src)
	if err != nil {
		return "", err
	}
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// UserMessage builds the user message for req.
func UserMessage(req *llmls.Request) string {
	if req.Kind == llmls.KindInstruct {
		return SplitInstructions(req.Text)
	}
	return req.Text
}

// Messages returns the system and user messages for req.
func (b *Builder) Messages(req *llmls.Request) []Message {
	return []Message{
		{Role: RoleSystem, Content: b.System(req.Kind, Data{Language: req.LanguageID})},
		{Role: RoleUser, Content: UserMessage(req)},
	}
}

// Package generate opens model completion streams for llmls requests.
package generate

import (
	"context"
	"log/slog"

	llmls "github.com/Paranoid-AF/llmls"
	"github.com/Paranoid-AF/llmls/prompt"
)

// Engine turns requests into prompts and opens completion streams for them.
type Engine struct {
	generator *Generator
	builder   *prompt.Builder
	config    *llmls.Config
}

// NewEngine creates an engine from the on-disk config and custom prompts.
func NewEngine() *Engine {
	cfg, err := llmls.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = llmls.DefaultConfig()
	}
	return NewEngineWithConfig(cfg, prompt.LoadBuilder())
}

// NewEngineWithConfig creates an engine from an explicit config.
// A nil builder uses the embedded prompts.
func NewEngineWithConfig(cfg *llmls.Config, builder *prompt.Builder) *Engine {
	if builder == nil {
		builder = prompt.NewBuilder("", "")
	}
	for _, w := range llmls.ValidateConfig(cfg) {
		slog.Warn("config warning", "warning", w)
	}

	var gen *Generator
	if llmls.GenerationEnabled(cfg) {
		gen = NewGenerator(
			llmls.ResolveBaseURL(cfg),
			llmls.ResolveAPIKey(cfg),
			llmls.ResolveModel(cfg),
			cfg.Generation.MaxTokens,
			cfg.Generation.Temperature,
			cfg.Generation.Stop,
		)
	} else {
		slog.Warn("generation base_url or model not configured")
	}

	return &Engine{
		generator: gen,
		builder:   builder,
		config:    cfg,
	}
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *llmls.Config {
	return e.config
}

// Messages returns the prompt messages the engine would send for req.
func (e *Engine) Messages(req *llmls.Request) []prompt.Message {
	return e.builder.Messages(req)
}

// Open builds the prompt for req and starts streaming the model's answer.
// Failures are returned as *llmls.Error.
func (e *Engine) Open(ctx context.Context, req *llmls.Request) (Stream, error) {
	if e.generator == nil {
		return nil, &llmls.Error{
			Code:    llmls.CodeNotConfigured,
			Message: "generation model not configured; set LLMLS_MODEL and LLMLS_API_BASE_URL or edit " + llmls.ConfigPath(),
		}
	}

	messages := e.Messages(req)
	slog.Debug("prompt", "kind", req.Kind, "system", messages[0].Content, "user", messages[1].Content)

	stream, err := e.generator.Open(ctx, messages)
	if err != nil {
		slog.Error("generation error", "error", err)
		return nil, &llmls.Error{Code: llmls.CodeAPIError, Message: err.Error()}
	}
	return stream, nil
}

// Close releases the generator's idle connections.
func (e *Engine) Close() {
	if e.generator != nil {
		e.generator.Close()
	}
}

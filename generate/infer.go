package generate

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Paranoid-AF/llmls/prompt"
)

// Stream yields the text of a streamed completion, chunk by chunk.
type Stream interface {
	// Recv returns the next non-empty chunk, or io.EOF once the stream ends.
	Recv() (string, error)
	Close() error
}

// Generator streams chat completions from an OpenAI-compatible API.
type Generator struct {
	client      *openai.Client
	httpClient  *http.Client
	model       string
	maxTokens   int
	temperature *float64
	stop        []string
}

// NewGenerator creates a generator from config.
// A nil temperature leaves the choice to the server.
func NewGenerator(baseURL, apiKey, model string, maxTokens int, temperature *float64, stop []string) *Generator {
	httpClient := &http.Client{}
	config := openai.DefaultConfig(apiKey)
	config.HTTPClient = httpClient
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Generator{
		client:      openai.NewClientWithConfig(config),
		httpClient:  httpClient,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		stop:        stop,
	}
}

// Close drops idle keep-alive connections. Open streams are not affected.
func (g *Generator) Close() {
	g.httpClient.CloseIdleConnections()
}

// requestTemperature maps the configured temperature to the request field.
// go-openai omits a zero temperature, so an explicit 0 is sent as the
// smallest positive float32 instead.
func requestTemperature(t *float64) float32 {
	switch {
	case t == nil:
		return 0
	case *t == 0:
		return math.SmallestNonzeroFloat32
	default:
		return float32(*t)
	}
}

// Open starts a streaming chat completion for messages.
// Cancelling ctx aborts the stream.
func (g *Generator) Open(ctx context.Context, messages []prompt.Message) (Stream, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    msgs,
		MaxTokens:   g.maxTokens,
		Temperature: requestTemperature(g.temperature),
		Stop:        g.stop,
		Stream:      true,
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}
	return &chatStream{stream: stream}, nil
}

type chatStream struct {
	stream *openai.ChatCompletionStream
}

func (s *chatStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		// Role-only and finish chunks carry no content.
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *chatStream) Close() error {
	s.stream.Close()
	return nil
}

// Package llm abstracts the chat completion backend. The rest of the
// system talks to the Client interface; the concrete backend is chosen
// by configuration and is orthogonal to the embedding provider.
package llm

import (
	"context"
	"errors"
	"fmt"

	"doclore/internal/config"
)

// Message is one conversation turn sent to the model.
type Message struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

// Options tune a single completion call. Zero values defer to the
// client's configured defaults.
type Options struct {
	SystemPrompt string
	Temperature  float32
	MaxTokens    int
	JSONOutput   bool // request strict-JSON output when the backend supports it
}

// Completion is a finished model response.
type Completion struct {
	Text         string
	FinishReason string
	InputTokens  int
	OutputTokens int
}

// StreamEventType discriminates events on a streaming completion.
type StreamEventType int

const (
	// EventChunk carries an incremental text delta.
	EventChunk StreamEventType = iota
	// EventDone closes a successful stream; Text holds the full response.
	EventDone
	// EventError closes a failed stream.
	EventError
)

// StreamEvent is one event on a streaming completion channel. The
// channel always terminates with exactly one EventDone or EventError.
type StreamEvent struct {
	Type StreamEventType
	Text string
	Err  error
}

// Client is the chat completion contract.
type Client interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
	CompleteStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error)
	Name() string
}

// ErrNotConfigured means the backend is missing credentials or a model.
var ErrNotConfigured = errors.New("llm backend not configured")

// NewClient builds the configured chat client.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "", "genai", "gemini":
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

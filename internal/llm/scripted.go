package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays canned responses in order. It backs the agent,
// tool, and chat tests.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	calls     []ScriptedCall
	errAfter  error
}

// ScriptedCall records one request for later assertions.
type ScriptedCall struct {
	Messages []Message
	Opts     Options
}

// NewScriptedClient returns a client that yields the given responses in
// order and errors once they are exhausted.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// FailWith makes the client return err after the scripted responses run
// out (instead of the default exhaustion error).
func (s *ScriptedClient) FailWith(err error) *ScriptedClient {
	s.errAfter = err
	return s
}

// Calls returns the recorded requests.
func (s *ScriptedClient) Calls() []ScriptedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScriptedCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *ScriptedClient) next(messages []Message, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, ScriptedCall{Messages: messages, Opts: opts})
	if len(s.responses) == 0 {
		if s.errAfter != nil {
			return "", s.errAfter
		}
		return "", fmt.Errorf("scripted client exhausted after %d calls", len(s.calls))
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func (s *ScriptedClient) Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := s.next(messages, opts)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: text, FinishReason: "STOP"}, nil
}

func (s *ScriptedClient) CompleteStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamEvent, error) {
	text, err := s.next(messages, opts)
	events := make(chan StreamEvent, 2)
	if err != nil {
		events <- StreamEvent{Type: EventError, Err: err}
	} else {
		events <- StreamEvent{Type: EventChunk, Text: text}
		events <- StreamEvent{Type: EventDone, Text: text}
	}
	close(events)
	return events, nil
}

func (s *ScriptedClient) Name() string { return "scripted" }

// Package chat orchestrates one conversation turn: budgeted context
// assembly, the LLM completion, tool dispatch for any tool_call blocks
// in the response, and persistence of both sides of the exchange.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"doclore/internal/contextmgr"
	"doclore/internal/llm"
	"doclore/internal/logging"
	"doclore/internal/protocol"
	"doclore/internal/store"
	"doclore/internal/tools"
)

// Turn is the user-visible outcome of one exchange.
type Turn struct {
	// Reply is the assistant text with tool_call blocks stripped.
	Reply string

	// ToolResults holds the outcomes of dispatched calls, in the order
	// the model emitted them.
	ToolResults []*tools.Result

	// ParseErrors lists malformed tool_call blocks; they are reported,
	// never fatal.
	ParseErrors []protocol.ParseError

	// ContextChunks are the retrieved chunks that backed the turn.
	ContextChunks []store.SearchResult

	// Truncated is set when history or chunks were dropped for budget.
	Truncated bool
}

// Service runs chat turns for one store. Each (project | global) scope
// has one active session; turns against different scopes are
// independent.
type Service struct {
	store    *store.Store
	contexts *contextmgr.Manager
	client   llm.Client
	registry *tools.Registry
}

func New(s *store.Store, contexts *contextmgr.Manager, client llm.Client, registry *tools.Registry) *Service {
	return &Service{store: s, contexts: contexts, client: client, registry: registry}
}

// Send runs one turn: the user message goes in, the assistant reply and
// any tool outcomes come out, and both are persisted to the scope's
// session. Tool calls execute sequentially in their textual order;
// their serialized results are appended to the stored assistant message
// so the model observes them on the next turn.
func (c *Service) Send(ctx context.Context, scope store.Scope, userText string) (*Turn, error) {
	session, err := c.store.GetOrCreateSession(scope)
	if err != nil {
		return nil, err
	}

	mc, err := c.contexts.Manage(ctx, scope, session.Messages, userText)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(mc.Messages)+2)
	for _, m := range mc.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	if block := renderChunks(mc.Chunks); block != "" {
		messages = append(messages, llm.Message{Role: "user", Content: block})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userText})

	completion, err := c.client.Complete(ctx, messages, llm.Options{SystemPrompt: mc.SystemPrompt})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	parsed := protocol.Parse(completion.Text, c.registry.Has)

	turn := &Turn{
		Reply:         parsed.DisplayText,
		ParseErrors:   parsed.Errors,
		ContextChunks: mc.Chunks,
		Truncated:     mc.Truncated,
	}

	// Dispatch sequentially in textual order; a failed call is recorded
	// and the rest still run.
	var resultBlocks []string
	executions := make([]store.ToolExecution, 0, len(parsed.Calls))
	for _, call := range parsed.Calls {
		result := c.registry.Execute(ctx, call.Tool, call.Params, scope)
		turn.ToolResults = append(turn.ToolResults, result)
		resultBlocks = append(resultBlocks, protocol.FormatResult(result))
		executions = append(executions, store.ToolExecution{
			Tool:            result.Tool,
			Success:         result.Success,
			Error:           result.Error,
			PersistedChange: result.PersistedChanges,
		})
	}

	chunkIDs := make([]string, len(mc.Chunks))
	for i, chunk := range mc.Chunks {
		chunkIDs[i] = chunk.ChunkID
	}

	userMsg := store.ChatMessage{
		ID:            uuid.NewString(),
		Role:          "user",
		Content:       userText,
		Timestamp:     time.Now(),
		ContextChunks: chunkIDs,
	}
	if err := c.store.AppendMessage(session.ID, userMsg); err != nil {
		return nil, err
	}

	assistantContent := completion.Text
	if len(resultBlocks) > 0 {
		assistantContent += "\n\n" + strings.Join(resultBlocks, "\n")
	}
	assistantMsg := store.ChatMessage{
		ID:             uuid.NewString(),
		Role:           "assistant",
		Content:        assistantContent,
		Timestamp:      time.Now(),
		ToolExecutions: executions,
	}
	if err := c.store.AppendMessage(session.ID, assistantMsg); err != nil {
		return nil, err
	}

	logging.Session("Turn complete (scope=%s): %d tool calls, %d parse errors, truncated=%v",
		scope, len(parsed.Calls), len(parsed.Errors), mc.Truncated)
	return turn, nil
}

// History returns the persisted messages for the scope's session.
func (c *Service) History(scope store.Scope) ([]store.ChatMessage, error) {
	session, err := c.store.GetOrCreateSession(scope)
	if err != nil {
		return nil, err
	}
	return session.Messages, nil
}

// renderChunks formats retrieved chunks as a context block preceding
// the user's message.
func renderChunks(chunks []store.SearchResult) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant document excerpts:\n\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", chunk.FileName, chunk.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclore/internal/config"
	"doclore/internal/contextmgr"
	"doclore/internal/docproc"
	"doclore/internal/ingest"
	"doclore/internal/llm"
	"doclore/internal/store"
	"doclore/internal/tools"
	"doclore/internal/version"
)

type unitEngine struct{}

func (unitEngine) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
func (unitEngine) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (unitEngine) Dimensions() int { return 2 }
func (unitEngine) Name() string    { return "unit" }

func newTestChat(t *testing.T, client llm.Client) (*Service, *store.Store, store.Scope) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	engine := unitEngine{}
	contexts := contextmgr.NewManager(s, engine, config.ContextConfig{
		MaxTokens:           4000,
		ReservedForResponse: 500,
		CharsPerToken:       4,
		ChunkShare:          0.4,
		ChunkBudgetCap:      1000,
		TopK:                5,
	})

	indexer := ingest.NewIndexer(s, engine, docproc.NewProcessor(),
		version.NewManager(s, 0), config.ChunkingConfig{MaxChunkSize: 1000, Overlap: 0})

	project, _, err := s.CreateProject("kb", "knowledge base")
	require.NoError(t, err)
	scope := store.Scope{ProjectID: project.ID}
	_, err = indexer.IngestBytes(context.Background(), project.ID, "facts.md",
		[]byte("# Facts\n\nThe archive opened in 1971."))
	require.NoError(t, err)

	reg := tools.NewRegistry()
	tools.RegisterAll(reg, tools.Deps{
		Store:    s,
		Engine:   engine,
		LLM:      client,
		Versions: version.NewManager(s, 0),
		Indexer:  indexer,
	})

	return New(s, contexts, client, reg), s, scope
}

func TestSendPersistsBothSides(t *testing.T) {
	client := llm.NewScriptedClient("The archive opened in 1971, per facts.md.")
	svc, s, scope := newTestChat(t, client)

	turn, err := svc.Send(context.Background(), scope, "when did the archive open?")
	require.NoError(t, err)

	assert.Equal(t, "The archive opened in 1971, per facts.md.", turn.Reply)
	assert.Empty(t, turn.ToolResults)
	assert.NotEmpty(t, turn.ContextChunks)

	session, err := s.GetOrCreateSession(scope)
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, "user", session.Messages[0].Role)
	assert.Equal(t, "when did the archive open?", session.Messages[0].Content)
	assert.NotEmpty(t, session.Messages[0].ContextChunks)
	assert.Equal(t, "assistant", session.Messages[1].Role)
}

func TestSendDispatchesToolCalls(t *testing.T) {
	client := llm.NewScriptedClient(
		"Let me look that up.\n\n```tool_call\n{\"tool\": \"search\", \"params\": {\"query\": \"archive\"}}\n```",
	)
	svc, s, scope := newTestChat(t, client)

	turn, err := svc.Send(context.Background(), scope, "find the archive notes")
	require.NoError(t, err)

	assert.Equal(t, "Let me look that up.", turn.Reply)
	require.Len(t, turn.ToolResults, 1)
	assert.True(t, turn.ToolResults[0].Success)
	assert.Equal(t, "search", turn.ToolResults[0].Tool)

	// Tool outcome is serialized into the stored assistant message so
	// the model sees it next turn.
	session, err := s.GetOrCreateSession(scope)
	require.NoError(t, err)
	assistant := session.Messages[1]
	assert.Contains(t, assistant.Content, "```tool_result")
	require.Len(t, assistant.ToolExecutions, 1)
	assert.Equal(t, "search", assistant.ToolExecutions[0].Tool)
	assert.True(t, assistant.ToolExecutions[0].Success)
}

func TestSendCollectsMalformedBlocksWithoutAborting(t *testing.T) {
	client := llm.NewScriptedClient(strings.Join([]string{
		"```tool_call",
		`{"tool": "search", "params": {"query": "a"}}`,
		"```",
		"```tool_call",
		`{not json`,
		"```",
	}, "\n"))
	svc, _, scope := newTestChat(t, client)

	turn, err := svc.Send(context.Background(), scope, "go")
	require.NoError(t, err)

	assert.Len(t, turn.ToolResults, 1)
	require.Len(t, turn.ParseErrors, 1)
	assert.Contains(t, turn.ParseErrors[0].Reason, "invalid JSON")
}

func TestSendFailedToolIsRecordedNotFatal(t *testing.T) {
	client := llm.NewScriptedClient(
		"```tool_call\n{\"tool\": \"read\", \"params\": {\"file\": \"no-such-file-xyz\"}}\n```",
	)
	svc, s, scope := newTestChat(t, client)

	turn, err := svc.Send(context.Background(), scope, "read it")
	require.NoError(t, err)

	require.Len(t, turn.ToolResults, 1)
	assert.False(t, turn.ToolResults[0].Success)

	session, err := s.GetOrCreateSession(scope)
	require.NoError(t, err)
	require.Len(t, session.Messages[1].ToolExecutions, 1)
	assert.False(t, session.Messages[1].ToolExecutions[0].Success)
	assert.NotEmpty(t, session.Messages[1].ToolExecutions[0].Error)
}

func TestHistoryCarriesAcrossTurns(t *testing.T) {
	client := llm.NewScriptedClient("First answer.", "Second answer.")
	svc, _, scope := newTestChat(t, client)

	_, err := svc.Send(context.Background(), scope, "first question")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), scope, "second question")
	require.NoError(t, err)

	// The second completion request includes the first exchange.
	calls := client.Calls()
	require.Len(t, calls, 2)
	var contents []string
	for _, m := range calls[1].Messages {
		contents = append(contents, m.Content)
	}
	joined := strings.Join(contents, "\n")
	assert.Contains(t, joined, "first question")
	assert.Contains(t, joined, "First answer.")

	history, err := svc.History(scope)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSessionsAreScopeIsolated(t *testing.T) {
	client := llm.NewScriptedClient("project answer", "global answer")
	svc, _, scope := newTestChat(t, client)

	_, err := svc.Send(context.Background(), scope, "scoped question")
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), store.Scope{}, "global question")
	require.NoError(t, err)

	scoped, err := svc.History(scope)
	require.NoError(t, err)
	global, err := svc.History(store.Scope{})
	require.NoError(t, err)

	assert.Len(t, scoped, 2)
	assert.Len(t, global, 2)
	assert.Equal(t, "scoped question", scoped[0].Content)
	assert.Equal(t, "global question", global[0].Content)
}

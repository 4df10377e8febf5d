package protocol

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclore/internal/tools"
)

func known(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParsePlainText(t *testing.T) {
	p := Parse("Just an answer, no tools needed.", nil)
	assert.False(t, p.HasCalls())
	assert.Empty(t, p.Errors)
	assert.Equal(t, "Just an answer, no tools needed.", p.DisplayText)
}

func TestParseSingleCall(t *testing.T) {
	text := "Let me search for that.\n\n```tool_call\n{\"tool\": \"search\", \"params\": {\"query\": \"chunk overlap\", \"limit\": 5}}\n```\n"

	p := Parse(text, known("search"))
	require.Len(t, p.Calls, 1)
	assert.Equal(t, "search", p.Calls[0].Tool)
	assert.Equal(t, "chunk overlap", p.Calls[0].Params["query"])
	assert.Equal(t, float64(5), p.Calls[0].Params["limit"])
	assert.Equal(t, "Let me search for that.", p.DisplayText)
}

func TestParsePreservesTextualOrder(t *testing.T) {
	text := "First:\n```tool_call\n{\"tool\": \"read\", \"params\": {\"file\": \"a.md\"}}\n```\nthen:\n```tool_call\n{\"tool\": \"search\", \"params\": {\"query\": \"x\"}}\n```"

	p := Parse(text, known("read", "search"))
	require.Len(t, p.Calls, 2)
	assert.Equal(t, "read", p.Calls[0].Tool)
	assert.Equal(t, "search", p.Calls[1].Tool)
}

func TestParseMalformedBlockDoesNotAbortOthers(t *testing.T) {
	text := "```tool_call\n{\"tool\": \"read\", \"params\": {\"file\": \"a.md\"}}\n```\n" +
		"```tool_call\n{not json at all\n```\n" +
		"```tool_call\n{\"tool\": \"search\", \"params\": {\"query\": \"y\"}}\n```"

	p := Parse(text, known("read", "search"))
	assert.Len(t, p.Calls, 2)
	require.Len(t, p.Errors, 1)
	assert.Contains(t, p.Errors[0].Reason, "invalid JSON")
}

func TestParseUnknownToolCollected(t *testing.T) {
	text := "```tool_call\n{\"tool\": \"launchRockets\", \"params\": {}}\n```"

	p := Parse(text, known("read"))
	assert.Empty(t, p.Calls)
	require.Len(t, p.Errors, 1)
	assert.Contains(t, p.Errors[0].Reason, "unknown tool")
}

func TestParseMissingToolName(t *testing.T) {
	text := "```tool_call\n{\"params\": {\"query\": \"x\"}}\n```"

	p := Parse(text, nil)
	assert.Empty(t, p.Calls)
	require.Len(t, p.Errors, 1)
	assert.Contains(t, p.Errors[0].Reason, "missing tool name")
}

func TestParseNilParamsBecomesEmptyMap(t *testing.T) {
	text := "```tool_call\n{\"tool\": \"read\"}\n```"

	p := Parse(text, nil)
	require.Len(t, p.Calls, 1)
	assert.NotNil(t, p.Calls[0].Params)
}

func TestDisplayTextCollapsesBlankRuns(t *testing.T) {
	text := "Before.\n\n```tool_call\n{\"tool\": \"read\", \"params\": {}}\n```\n\nAfter."

	p := Parse(text, nil)
	assert.NotContains(t, p.DisplayText, "tool_call")
	assert.NotContains(t, p.DisplayText, "\n\n\n")
	assert.Contains(t, p.DisplayText, "Before.")
	assert.Contains(t, p.DisplayText, "After.")
}

func TestFormatResultRoundTrip(t *testing.T) {
	r := tools.Ok("search", map[string]any{"hits": 3}).WithMeta("elapsed_ms", 12)

	block := FormatResult(r)
	assert.True(t, strings.HasPrefix(block, "```tool_result\n"))
	assert.True(t, strings.HasSuffix(block, "\n```"))
	assert.Contains(t, block, `"tool": "search"`)
	assert.Contains(t, block, `"success": true`)
}

func TestFormatCall(t *testing.T) {
	call := ToolCall{Tool: "read", Params: map[string]any{"file": "a.md"}}

	block := FormatCall(call)
	p := Parse(block, known("read"))
	require.Len(t, p.Calls, 1)
	if diff := cmp.Diff(call, p.Calls[0], cmpopts.IgnoreFields(ToolCall{}, "Raw")); diff != "" {
		t.Errorf("call did not survive the round trip (-want +got):\n%s", diff)
	}
}

// Package protocol extracts structured tool invocations from free-form
// model output and serializes tool results back into the conversation.
//
// The wire form is a fenced block:
//
//	```tool_call
//	{"tool": "<name>", "params": {...}}
//	```
//
// A response may carry any number of blocks; they execute sequentially
// in their textual order.
package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"doclore/internal/logging"
	"doclore/internal/tools"
)

var toolCallBlock = regexp.MustCompile("(?s)```tool_call\\s*\\n(.*?)\\n?```")

// ToolCall is one parsed invocation.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`

	// Raw preserves the block body for error reporting.
	Raw string `json:"-"`
}

// ParseError records a block that could not be turned into a call.
// Malformed blocks never abort extraction of the well-formed ones.
type ParseError struct {
	Block  string
	Reason string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("tool_call block rejected: %s", e.Reason)
}

// Parsed is the outcome of scanning one model response.
type Parsed struct {
	// DisplayText is the response with tool_call blocks stripped.
	DisplayText string

	// Calls are the well-formed invocations in document order.
	Calls []ToolCall

	// Errors are the malformed blocks, also in document order.
	Errors []ParseError
}

// HasCalls reports whether any well-formed invocation was found.
func (p *Parsed) HasCalls() bool { return len(p.Calls) > 0 }

// Parse scans text for fenced tool_call blocks. isKnown validates tool
// names; pass nil to accept any name.
func Parse(text string, isKnown func(name string) bool) *Parsed {
	parsed := &Parsed{}

	matches := toolCallBlock.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		body := strings.TrimSpace(text[m[2]:m[3]])

		var call ToolCall
		if err := json.Unmarshal([]byte(body), &call); err != nil {
			parsed.Errors = append(parsed.Errors, ParseError{Block: body, Reason: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}
		if call.Tool == "" {
			parsed.Errors = append(parsed.Errors, ParseError{Block: body, Reason: "missing tool name"})
			continue
		}
		if isKnown != nil && !isKnown(call.Tool) {
			parsed.Errors = append(parsed.Errors, ParseError{Block: body, Reason: fmt.Sprintf("unknown tool: %s", call.Tool)})
			continue
		}
		if call.Params == nil {
			call.Params = map[string]any{}
		}
		call.Raw = body
		parsed.Calls = append(parsed.Calls, call)
	}

	parsed.DisplayText = stripBlocks(text)

	if len(parsed.Calls) > 0 || len(parsed.Errors) > 0 {
		logging.ProtocolDebug("Parsed response: %d calls, %d malformed blocks", len(parsed.Calls), len(parsed.Errors))
	}
	return parsed
}

// stripBlocks removes tool_call blocks and collapses the blank runs they
// leave behind.
func stripBlocks(text string) string {
	cleaned := toolCallBlock.ReplaceAllString(text, "")
	lines := strings.Split(cleaned, "\n")

	var out []string
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// FormatCall renders a call back to its wire form. Used when replaying
// plans into the conversation.
func FormatCall(call ToolCall) string {
	body, err := json.Marshal(struct {
		Tool   string         `json:"tool"`
		Params map[string]any `json:"params"`
	}{call.Tool, call.Params})
	if err != nil {
		body = []byte(fmt.Sprintf(`{"tool": %q}`, call.Tool))
	}
	return fmt.Sprintf("```tool_call\n%s\n```", body)
}

// FormatResult serializes a tool result as a structured block appended
// to the conversation, so the model observes outcomes in its next turn.
func FormatResult(r *tools.Result) string {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprintf(`{"success": false, "tool": %q, "error": "unserializable result"}`, r.Tool))
	}
	return fmt.Sprintf("```tool_result\n%s\n```", body)
}

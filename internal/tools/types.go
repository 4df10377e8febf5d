// Package tools provides the fixed tool catalog the agent can invoke:
// document reading, retrieval, summarization, file/project management,
// web research, and note taking.
//
// Every tool resolves to a *Result; failures never escape as panics or
// errors past the tool boundary, so the executor can apply its own
// policy to unsuccessful steps.
package tools

import (
	"context"
	"fmt"

	"doclore/internal/store"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// Schema defines the JSON schema for tool parameters.
type Schema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// Result is the uniform outcome of a tool execution.
type Result struct {
	Success bool   `json:"success"`
	Tool    string `json:"tool"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	// PersistedChanges is true when the tool mutated projects or files.
	// The completion checker uses it to tell side-effecting steps from
	// read-only ones.
	PersistedChanges bool `json:"persistedChanges,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ok builds a successful result.
func Ok(tool string, data any) *Result {
	return &Result{Success: true, Tool: tool, Data: data}
}

// Fail builds an unsuccessful result.
func Fail(tool, format string, args ...any) *Result {
	return &Result{Success: false, Tool: tool, Error: fmt.Sprintf(format, args...)}
}

// WithPersisted marks the result as having mutated persistent state.
func (r *Result) WithPersisted() *Result {
	r.PersistedChanges = true
	return r
}

// WithMeta attaches a metadata entry.
func (r *Result) WithMeta(key string, value any) *Result {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}
	r.Metadata[key] = value
	return r
}

// ExecuteFunc is the signature for tool execution. The scope carries the
// active project (or global) context.
type ExecuteFunc func(ctx context.Context, params map[string]any, scope store.Scope) *Result

// Tool is one named entry in the catalog.
type Tool struct {
	// Name is the unique identifier used in tool_call blocks.
	Name string

	// Description explains what the tool does, for the planner prompt.
	Description string

	// Schema defines the expected parameters.
	Schema Schema

	// Execute runs the tool.
	Execute ExecuteFunc

	// Mutating marks tools that write to projects or files.
	Mutating bool
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

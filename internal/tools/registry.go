package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"doclore/internal/logging"
	"doclore/internal/store"
)

// Registry holds all available tools and provides lookup functionality.
// It is thread-safe and supports registration at runtime.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name already exists.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	r.tools[tool.Name] = tool

	logging.ToolsDebug("Registered tool: %s (mutating=%v)", tool.Name, tool.Mutating)
	return nil
}

// MustRegister registers a tool and panics on error.
// Use this for static tool registration at startup.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has returns true if a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all registered tools sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute runs a tool by name. An unknown tool, a missing required
// parameter, or a panic inside the tool all resolve to an unsuccessful
// Result rather than an error.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, scope store.Scope) *Result {
	tool := r.Get(name)
	if tool == nil {
		return Fail(name, "unknown tool: %s", name)
	}
	return r.ExecuteTool(ctx, tool, params, scope)
}

// ExecuteTool runs a specific tool with the given parameters.
func (r *Registry) ExecuteTool(ctx context.Context, tool *Tool, params map[string]any, scope store.Scope) (result *Result) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logging.Get(logging.CategoryTools).Error("Tool %s panicked: %v", tool.Name, rec)
			result = Fail(tool.Name, "internal tool failure: %v", rec)
		}
	}()

	for _, required := range tool.Schema.Required {
		if _, ok := params[required]; !ok {
			return Fail(tool.Name, "missing required parameter: %s", required)
		}
	}

	logging.ToolsDebug("Executing tool: %s (scope=%s)", tool.Name, scope)
	result = tool.Execute(ctx, params, scope)
	if result == nil {
		result = Fail(tool.Name, "tool returned no result")
	}

	logging.Tools("Tool %s completed in %v (success=%v, persisted=%v)",
		tool.Name, time.Since(start), result.Success, result.PersistedChanges)
	return result
}

// Package contextmgr assembles the token-budgeted prompt for a chat
// turn: scope-aware system prompt, the most recent history that fits,
// and retrieved chunks relevant to the current query.
package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"doclore/internal/config"
	"doclore/internal/embedding"
	"doclore/internal/logging"
	"doclore/internal/store"
)

// ManagedContext is the budgeted input for one LLM turn. Messages are in
// chronological order; Chunks are in descending similarity order.
type ManagedContext struct {
	SystemPrompt string
	Messages     []store.ChatMessage
	Chunks       []store.SearchResult

	// Truncated is set when history messages or retrieved chunks were
	// dropped to stay within budget.
	Truncated bool

	// EstimatedTokens covers system prompt, kept messages, and kept
	// chunks. It does not include the response reservation.
	EstimatedTokens int
}

// Manager builds managed contexts against a store and embedding engine.
type Manager struct {
	store  *store.Store
	engine embedding.Engine
	cfg    config.ContextConfig
}

func NewManager(s *store.Store, engine embedding.Engine, cfg config.ContextConfig) *Manager {
	return &Manager{store: s, engine: engine, cfg: cfg}
}

// Manage assembles the context window for a query.
//
// The budget math: estimate the system prompt at charsPerToken, compute
// available = maxTokens - reservedForResponse - systemTokens, then give
// retrieved chunks min(available*chunkShare, chunkBudgetCap) and history
// the rest. History is walked newest-to-oldest so the latest turns
// survive overflow; chunks are taken in similarity order until their
// budget runs out. Two independent greedy passes, no global optimization.
func (m *Manager) Manage(ctx context.Context, scope store.Scope, history []store.ChatMessage, query string) (*ManagedContext, error) {
	// A missing project is the caller's bug; fail before any retrieval.
	var project *store.Project
	if !scope.Global() {
		var err error
		project, err = m.store.GetProject(scope.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	systemPrompt, err := m.buildSystemPrompt(project)
	if err != nil {
		return nil, err
	}

	mc := &ManagedContext{SystemPrompt: systemPrompt}

	systemTokens := m.estimateTokens(systemPrompt)
	available := m.cfg.MaxTokens - m.cfg.ReservedForResponse - systemTokens
	if available <= 0 {
		logging.Get(logging.CategoryContext).Warn(
			"System prompt alone exhausts the window (%d tokens, max %d)", systemTokens, m.cfg.MaxTokens)
		mc.Truncated = len(history) > 0
		mc.EstimatedTokens = systemTokens
		return mc, nil
	}

	chunkBudget := int(float64(available) * m.cfg.ChunkShare)
	if chunkBudget > m.cfg.ChunkBudgetCap {
		chunkBudget = m.cfg.ChunkBudgetCap
	}
	historyBudget := available - chunkBudget

	messages, historyTruncated := m.fitHistory(history, historyBudget)
	mc.Messages = messages
	mc.Truncated = historyTruncated

	usedHistory := 0
	for _, msg := range messages {
		usedHistory += m.estimateTokens(msg.Content)
	}

	if strings.TrimSpace(query) != "" {
		chunks, chunksTruncated, err := m.fitChunks(ctx, scope, query, chunkBudget)
		if err != nil {
			return nil, err
		}
		mc.Chunks = chunks
		mc.Truncated = mc.Truncated || chunksTruncated
	}

	usedChunks := 0
	for _, c := range mc.Chunks {
		usedChunks += m.estimateTokens(c.Text)
	}
	mc.EstimatedTokens = systemTokens + usedHistory + usedChunks

	logging.ContextDebug("Assembled context: %d msgs, %d chunks, ~%d tokens (truncated=%v)",
		len(mc.Messages), len(mc.Chunks), mc.EstimatedTokens, mc.Truncated)
	return mc, nil
}

// fitHistory keeps the newest whole messages that fit the budget and
// returns them in chronological order.
func (m *Manager) fitHistory(history []store.ChatMessage, budget int) ([]store.ChatMessage, bool) {
	var kept []store.ChatMessage
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := m.estimateTokens(history[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		kept = append(kept, history[i])
	}

	// Restore chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept, len(kept) < len(history)
}

// fitChunks retrieves top-k chunks for the query and keeps them, in
// similarity order, while the budget allows.
func (m *Manager) fitChunks(ctx context.Context, scope store.Scope, query string, budget int) ([]store.SearchResult, bool, error) {
	queryVec, err := m.engine.Embed(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("query embedding failed: %w", err)
	}

	k := m.cfg.TopK
	if k <= 0 {
		k = 10
	}
	results, err := m.store.VectorSearch(ctx, scope, queryVec, k)
	if err != nil {
		return nil, false, err
	}

	var kept []store.SearchResult
	used := 0
	for _, r := range results {
		cost := m.estimateTokens(r.Text)
		if used+cost > budget {
			break
		}
		used += cost
		kept = append(kept, r)
	}
	return kept, len(kept) < len(results), nil
}

// buildSystemPrompt describes the active scope: a project's files and
// stats, or the full project listing for global sessions.
func (m *Manager) buildSystemPrompt(project *store.Project) (string, error) {
	var b strings.Builder
	b.WriteString("You are a document assistant working over the user's local knowledge base. ")
	b.WriteString("Answer from the provided document context when possible and cite file names. ")
	b.WriteString("Invoke tools with fenced tool_call blocks when the request requires action.\n\n")

	if project == nil {
		projects, err := m.store.ListProjects()
		if err != nil {
			return "", err
		}
		b.WriteString("Scope: global (all projects).\n")
		if len(projects) == 0 {
			b.WriteString("No projects exist yet.\n")
			return b.String(), nil
		}
		b.WriteString("Projects:\n")
		for _, p := range projects {
			stats, err := m.store.GetProjectStats(p.ID)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "- %s (%s): %d files, %d chunks\n", p.Name, p.Status, stats.FileCount, stats.ChunkCount)
		}
		return b.String(), nil
	}

	stats, err := m.store.GetProjectStats(project.ID)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Scope: project %q (%s), %d files, %d chunks.\n", project.Name, project.Status, stats.FileCount, stats.ChunkCount)
	if project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", project.Description)
	}

	files, err := m.store.ListFiles(store.Scope{ProjectID: project.ID})
	if err != nil {
		return "", err
	}
	if len(files) > 0 {
		b.WriteString("Files:\n")
		for _, f := range files {
			fmt.Fprintf(&b, "- %s (%s, %s)\n", f.Name, f.Type, f.Status)
		}
	}
	return b.String(), nil
}

// estimateTokens applies the fixed chars-per-token heuristic, rounding up.
func (m *Manager) estimateTokens(text string) int {
	cpt := m.cfg.CharsPerToken
	if cpt <= 0 {
		cpt = 4
	}
	return (len(text) + cpt - 1) / cpt
}

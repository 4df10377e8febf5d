package tools

import (
	"context"

	"doclore/internal/store"
)

// NewSearchTool returns the semantic search tool.
func NewSearchTool(d Deps) *Tool {
	return &Tool{
		Name:        "search",
		Description: "Semantic search over indexed documents; returns ranked snippets with file attribution.",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "The search query",
				},
				"project": {
					Type:        "string",
					Description: "Project name or id; defaults to the session scope (global searches all projects)",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum number of snippets (default 10)",
					Default:     10,
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			query, err := RequiredString(params, "query")
			if err != nil {
				return Fail("search", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("search", "%v", err)
			}

			limit := IntParam(params, "limit", 10)
			if limit <= 0 {
				limit = 10
			}

			queryVec, err := d.Engine.Embed(ctx, query)
			if err != nil {
				return Fail("search", "query embedding failed: %v", err)
			}

			results, err := d.Store.VectorSearch(ctx, scope, queryVec, limit)
			if err != nil {
				return Fail("search", "%v", err)
			}

			snippets := make([]map[string]any, len(results))
			for i, r := range results {
				snippets[i] = map[string]any{
					"file":       r.FileName,
					"fileId":     r.FileID,
					"projectId":  r.ProjectID,
					"chunkIndex": r.Index,
					"text":       r.Text,
					"similarity": r.Similarity,
				}
			}

			return Ok("search", map[string]any{
				"query":    query,
				"snippets": snippets,
			}).WithMeta("count", len(snippets))
		},
	}
}

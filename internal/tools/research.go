package tools

import (
	"context"

	"doclore/internal/store"
)

// NewWebResearchTool returns the web research tool. It fails softly
// when no research service is configured so the rest of the catalog
// keeps working offline.
func NewWebResearchTool(d Deps) *Tool {
	return &Tool{
		Name:        "webResearch",
		Description: "Research a query on the web; results are fetched, indexed, and cached with a TTL.",
		Schema: Schema{
			Required: []string{"query"},
			Properties: map[string]Property{
				"query": {
					Type:        "string",
					Description: "The research query",
				},
				"maxResults": {
					Type:        "integer",
					Description: "Maximum number of pages to fetch (default 5)",
					Default:     5,
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			query, err := RequiredString(params, "query")
			if err != nil {
				return Fail("webResearch", "%v", err)
			}
			if d.Research == nil {
				return Fail("webResearch", "web research is not configured")
			}

			maxResults := IntParam(params, "maxResults", 5)
			if maxResults <= 0 {
				maxResults = 5
			}

			result, err := d.Research.Research(ctx, query, maxResults)
			if err != nil {
				return Fail("webResearch", "%v", err)
			}

			return Ok("webResearch", result).
				WithMeta("fromCache", result.FromCache).
				WithMeta("sources", len(result.Sources))
		},
	}
}

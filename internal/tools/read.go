package tools

import (
	"context"

	"doclore/internal/store"
)

// readHeadLimit is the progressive-disclosure threshold: content larger
// than this comes back truncated so one read cannot blow the downstream
// token budget.
const readHeadLimit = 8000

// NewReadTool returns the document read tool.
func NewReadTool(d Deps) *Tool {
	return &Tool{
		Name:        "read",
		Description: "Read a document's content by file name or id. Large documents are returned truncated.",
		Schema: Schema{
			Required: []string{"file"},
			Properties: map[string]Property{
				"file": {
					Type:        "string",
					Description: "File name (fuzzy matched) or file id",
				},
				"project": {
					Type:        "string",
					Description: "Project name or id; defaults to the session scope",
				},
				"maxChars": {
					Type:        "integer",
					Description: "Override the truncation threshold",
					Default:     readHeadLimit,
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			ref, err := RequiredString(params, "file")
			if err != nil {
				return Fail("read", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("read", "%v", err)
			}

			file, err := locateFile(d.Store, scope, ref)
			if err != nil {
				return Fail("read", "%v", err)
			}

			limit := IntParam(params, "maxChars", readHeadLimit)
			if limit <= 0 {
				limit = readHeadLimit
			}

			content := file.Content
			truncated := false
			if len(content) > limit {
				content = content[:limit]
				truncated = true
			}

			return Ok("read", map[string]any{
				"fileId":     file.ID,
				"file":       file.Name,
				"projectId":  file.ProjectID,
				"content":    content,
				"truncated":  truncated,
				"totalChars": len(file.Content),
			})
		},
	}
}

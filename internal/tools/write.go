package tools

import (
	"context"
	"fmt"
	"strings"

	"doclore/internal/llm"
	"doclore/internal/store"
)

// NewWriteTool returns the file creation tool. Content is either passed
// directly or synthesized from retrieved context for a topic.
func NewWriteTool(d Deps) *Tool {
	return &Tool{
		Name:        "write",
		Description: "Create a Markdown file in the project, from given content or synthesized from retrieved context.",
		Mutating:    true,
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name": {
					Type:        "string",
					Description: "File name to create (.md is appended when missing)",
				},
				"project": {
					Type:        "string",
					Description: "Project name or id; defaults to the session scope",
				},
				"content": {
					Type:        "string",
					Description: "Explicit file content",
				},
				"topic": {
					Type:        "string",
					Description: "Topic to synthesize content about when no content is given",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			name, err := RequiredString(params, "name")
			if err != nil {
				return Fail("write", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("write", "%v", err)
			}
			if scope.Global() {
				return Fail("write", "write requires a project scope")
			}
			if !strings.Contains(name, ".") {
				name += ".md"
			}

			content := StringParam(params, "content", "")
			synthesized := false
			if content == "" {
				topic := StringParam(params, "topic", "")
				if topic == "" {
					return Fail("write", "either content or topic is required")
				}
				content, err = synthesizeContent(ctx, d, scope, topic)
				if err != nil {
					return Fail("write", "%v", err)
				}
				synthesized = true
			}

			file, err := d.Indexer.IngestBytes(ctx, scope.ProjectID, name, []byte(content))
			if err != nil {
				return Fail("write", "%v", err)
			}

			return Ok("write", map[string]any{
				"fileId":    file.ID,
				"file":      file.Name,
				"projectId": file.ProjectID,
				"chars":     len(content),
			}).WithPersisted().WithMeta("synthesized", synthesized)
		},
	}
}

// synthesizeContent drafts a document about topic from the project's
// most relevant chunks.
func synthesizeContent(ctx context.Context, d Deps, scope store.Scope, topic string) (string, error) {
	queryVec, err := d.Engine.Embed(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("topic embedding failed: %w", err)
	}
	results, err := d.Store.VectorSearch(ctx, scope, queryVec, 8)
	if err != nil {
		return "", err
	}

	var contextBlock strings.Builder
	for _, r := range results {
		fmt.Fprintf(&contextBlock, "[%s]\n%s\n\n", r.FileName, r.Text)
	}

	prompt := fmt.Sprintf(
		"Write a well-structured Markdown document about: %s\n\nBase it on this retrieved context; do not invent facts beyond it.\n\n%s",
		topic, contextBlock.String())

	completion, err := d.LLM.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("content synthesis failed: %w", err)
	}
	return completion.Text, nil
}

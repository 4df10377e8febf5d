package tools

import (
	"context"
	"fmt"
	"strings"

	"doclore/internal/llm"
	"doclore/internal/logging"
	"doclore/internal/store"
)

// directSummarizeThreshold separates one-shot summarization from the
// hierarchical map-reduce path.
const directSummarizeThreshold = 12000

// NewSummarizeTool returns the document summarization tool.
func NewSummarizeTool(d Deps) *Tool {
	return &Tool{
		Name:        "summarize",
		Description: "Summarize a document. Long documents are summarized per-chunk and then reduced.",
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
				"focus": {
					Type:        "string",
					Description: "Optional aspect to focus the summary on",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			ref, err := RequiredString(params, "file")
			if err != nil {
				return Fail("summarize", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("summarize", "%v", err)
			}

			file, err := locateFile(d.Store, scope, ref)
			if err != nil {
				return Fail("summarize", "%v", err)
			}
			focus := StringParam(params, "focus", "")

			var (
				summary  string
				strategy string
			)
			if len(file.Content) <= directSummarizeThreshold {
				strategy = "direct"
				summary, err = summarizeText(ctx, d.LLM, file.Content, focus)
			} else {
				strategy = "hierarchical"
				summary, err = summarizeHierarchical(ctx, d, file, focus)
			}
			if err != nil {
				return Fail("summarize", "%v", err)
			}

			return Ok("summarize", map[string]any{
				"file":    file.Name,
				"fileId":  file.ID,
				"summary": summary,
			}).WithMeta("strategy", strategy)
		},
	}
}

func summarizeText(ctx context.Context, client llm.Client, text, focus string) (string, error) {
	prompt := "Summarize the following document concisely, preserving key facts and structure."
	if focus != "" {
		prompt += " Focus on: " + focus + "."
	}

	completion, err := client.Complete(ctx, []llm.Message{
		{Role: "user", Content: prompt + "\n\n" + text},
	}, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return completion.Text, nil
}

// summarizeHierarchical maps chunk groups to partial summaries, then
// reduces them to one.
func summarizeHierarchical(ctx context.Context, d Deps, file *store.File, focus string) (string, error) {
	chunks, err := d.Store.GetChunks(file.ID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return summarizeText(ctx, d.LLM, file.Content, focus)
	}

	// Pack consecutive chunks into groups under the direct threshold.
	var groups []string
	var current strings.Builder
	for _, c := range chunks {
		if current.Len() > 0 && current.Len()+len(c.Text) > directSummarizeThreshold {
			groups = append(groups, current.String())
			current.Reset()
		}
		current.WriteString(c.Text)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		groups = append(groups, current.String())
	}

	logging.ToolsDebug("Hierarchical summary of %s: %d chunks in %d groups", file.Name, len(chunks), len(groups))

	partials := make([]string, len(groups))
	for i, group := range groups {
		partial, err := summarizeText(ctx, d.LLM, group, focus)
		if err != nil {
			return "", err
		}
		partials[i] = partial
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	combined := "Combine the following partial summaries of one document into a single coherent summary."
	if focus != "" {
		combined += " Focus on: " + focus + "."
	}
	completion, err := d.LLM.Complete(ctx, []llm.Message{
		{Role: "user", Content: combined + "\n\n" + strings.Join(partials, "\n---\n")},
	}, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("summary reduction failed: %w", err)
	}
	return completion.Text, nil
}

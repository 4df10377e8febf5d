package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"

	"doclore/internal/llm"
	"doclore/internal/store"
	"doclore/internal/version"
)

var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// UpdatePreview is the structured change proposal returned by the first
// updateFile phase. The caller must confirm it explicitly before the
// change is applied.
type UpdatePreview struct {
	FileID          string     `json:"fileId"`
	File            string     `json:"file"`
	Section         string     `json:"section"`
	Instruction     string     `json:"instruction"`
	ProposedContent string     `json:"proposedContent"`
	Diff            []DiffLine `json:"diff"`
	UnifiedDiff     string     `json:"unifiedDiff"`
}

// NewUpdateFileTool returns the two-phase document update tool. Without
// confirm, it builds a preview; with confirm and the previewed content,
// it applies the change, records a version, and reindexes.
func NewUpdateFileTool(d Deps) *Tool {
	return &Tool{
		Name:        "updateFile",
		Description: "Update part of a document per a natural-language instruction. Returns a diff preview first; pass confirm=true with the proposed content to apply.",
		Mutating:    true,
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
				"instruction": {
					Type:        "string",
					Description: "What to change (required for the preview phase)",
				},
				"section": {
					Type:        "string",
					Description: "Target section heading (exact or fuzzy matched)",
				},
				"lineStart": {
					Type:        "integer",
					Description: "Explicit target range start (1-based, inclusive)",
				},
				"lineEnd": {
					Type:        "integer",
					Description: "Explicit target range end (1-based, inclusive)",
				},
				"selection": {
					Type:        "string",
					Description: "Editor selection to use as additional targeting context",
				},
				"confirm": {
					Type:        "boolean",
					Description: "Apply a previously previewed change",
					Default:     false,
				},
				"proposedContent": {
					Type:        "string",
					Description: "Full proposed content from the preview (required with confirm)",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			ref, err := RequiredString(params, "file")
			if err != nil {
				return Fail("updateFile", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("updateFile", "%v", err)
			}

			file, err := locateFile(d.Store, scope, ref)
			if err != nil {
				return Fail("updateFile", "%v", err)
			}

			if BoolParam(params, "confirm", false) {
				return applyUpdate(ctx, d, file, params)
			}
			return previewUpdate(ctx, d, file, params)
		},
	}
}

// previewUpdate identifies the target section, asks the model for the
// replacement, and returns the classified diff without touching the
// store.
func previewUpdate(ctx context.Context, d Deps, file *store.File, params map[string]any) *Result {
	instruction, err := RequiredString(params, "instruction")
	if err != nil {
		return Fail("updateFile", "%v", err)
	}

	section, sectionLabel, err := targetSection(file.Content, params)
	if err != nil {
		return Fail("updateFile", "%v", err)
	}

	replacement, err := reasonedReplacement(ctx, d.LLM, section, instruction, StringParam(params, "selection", ""))
	if err != nil {
		return Fail("updateFile", "%v", err)
	}

	proposed := strings.Replace(file.Content, section, replacement, 1)
	lines := diffLines(file.Content, proposed)

	preview := UpdatePreview{
		FileID:          file.ID,
		File:            file.Name,
		Section:         sectionLabel,
		Instruction:     instruction,
		ProposedContent: proposed,
		Diff:            lines,
		UnifiedDiff:     unifiedDiff(lines),
	}

	// Preview only: nothing persisted until an explicit confirm.
	return Ok("updateFile", preview).WithMeta("requiresConfirmation", true)
}

// applyUpdate persists the previously previewed content, records a
// version, and reindexes the file.
func applyUpdate(ctx context.Context, d Deps, file *store.File, params map[string]any) *Result {
	proposed, err := RequiredString(params, "proposedContent")
	if err != nil {
		return Fail("updateFile", "confirm requires the previewed proposedContent: %v", err)
	}

	if err := d.Store.UpdateFileContent(file.ID, proposed); err != nil {
		return Fail("updateFile", "%v", err)
	}
	if _, err := d.Versions.Create(file.ID, proposed, version.SourceUpdate); err != nil {
		return Fail("updateFile", "%v", err)
	}

	file.Content = proposed
	if err := d.Indexer.IndexFile(ctx, file); err != nil {
		return Fail("updateFile", "reindex failed: %v", err)
	}

	return Ok("updateFile", map[string]any{
		"fileId":  file.ID,
		"file":    file.Name,
		"applied": true,
	}).WithPersisted()
}

// targetSection picks the part of the document an instruction applies
// to: explicit line range, heading match (exact then fuzzy), or the
// whole document.
func targetSection(content string, params map[string]any) (section, label string, err error) {
	lineStart := IntParam(params, "lineStart", 0)
	lineEnd := IntParam(params, "lineEnd", 0)
	if lineStart > 0 {
		lines := strings.Split(content, "\n")
		if lineStart > len(lines) {
			return "", "", fmt.Errorf("lineStart %d beyond end of file (%d lines)", lineStart, len(lines))
		}
		if lineEnd <= 0 || lineEnd > len(lines) {
			lineEnd = len(lines)
		}
		if lineEnd < lineStart {
			return "", "", fmt.Errorf("lineEnd %d before lineStart %d", lineEnd, lineStart)
		}
		return strings.Join(lines[lineStart-1:lineEnd], "\n"), fmt.Sprintf("lines %d-%d", lineStart, lineEnd), nil
	}

	heading := StringParam(params, "section", "")
	if heading == "" {
		return content, "entire document", nil
	}

	sections := splitByHeadings(content)
	if len(sections) == 0 {
		return content, "entire document", nil
	}

	titles := make([]string, len(sections))
	for i, s := range sections {
		titles[i] = s.title
	}

	// Exact (case-insensitive) first, fuzzy as fallback.
	for i, title := range titles {
		if strings.EqualFold(title, heading) {
			return sections[i].body, title, nil
		}
	}
	matches := fuzzy.Find(heading, titles)
	if len(matches) == 0 {
		return "", "", fmt.Errorf("no section matching %q (headings: %s)", heading, strings.Join(titles, ", "))
	}
	best := sections[matches[0].Index]
	return best.body, best.title, nil
}

type docSection struct {
	title string
	body  string // heading line through the text before the next heading
}

func splitByHeadings(content string) []docSection {
	locs := headingPattern.FindAllStringSubmatchIndex(content, -1)
	sections := make([]docSection, 0, len(locs))
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, docSection{
			title: content[loc[4]:loc[5]],
			body:  strings.TrimRight(content[loc[0]:end], "\n"),
		})
	}
	return sections
}

// reasonedReplacement asks the model for the rewritten section.
func reasonedReplacement(ctx context.Context, client llm.Client, section, instruction, selection string) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Rewrite the document section below according to the instruction. ")
	prompt.WriteString("Return ONLY the rewritten section text, no commentary, no code fences.\n\n")
	fmt.Fprintf(&prompt, "Instruction: %s\n", instruction)
	if selection != "" {
		fmt.Fprintf(&prompt, "The user has selected this passage: %s\n", selection)
	}
	prompt.WriteString("\n--- SECTION ---\n")
	prompt.WriteString(section)

	completion, err := client.Complete(ctx, []llm.Message{{Role: "user", Content: prompt.String()}}, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("replacement generation failed: %w", err)
	}

	replacement := stripFence(strings.TrimSpace(completion.Text))
	if replacement == "" {
		return "", fmt.Errorf("model returned an empty replacement")
	}
	return replacement, nil
}

// stripFence removes a wrapping markdown code fence if the model added
// one despite instructions.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
	}
	return text
}

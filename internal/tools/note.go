package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doclore/internal/store"
)

const defaultNotesFile = "notes.md"

// NewAddNoteTool returns the quick-capture tool: appends a timestamped
// note to the project's notes file, creating it on first use.
func NewAddNoteTool(d Deps) *Tool {
	return &Tool{
		Name:        "addNote",
		Description: "Append a timestamped note to the project's notes file.",
		Mutating:    true,
		Schema: Schema{
			Required: []string{"note"},
			Properties: map[string]Property{
				"note": {
					Type:        "string",
					Description: "The note text",
				},
				"file": {
					Type:        "string",
					Description: "Notes file name (default notes.md)",
					Default:     defaultNotesFile,
				},
				"project": {
					Type:        "string",
					Description: "Project name or id; defaults to the session scope",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			note, err := RequiredString(params, "note")
			if err != nil {
				return Fail("addNote", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("addNote", "%v", err)
			}
			if scope.Global() {
				return Fail("addNote", "addNote requires a project scope")
			}

			name := StringParam(params, "file", defaultNotesFile)
			if !strings.Contains(name, ".") {
				name += ".md"
			}

			var existing string
			if file, err := d.Store.GetFileByName(scope, name); err == nil {
				existing = file.Content
			} else if !errors.Is(err, store.ErrFileNotFound) {
				return Fail("addNote", "%v", err)
			}

			entry := fmt.Sprintf("- **%s** %s", time.Now().Format("2006-01-02 15:04"), strings.TrimSpace(note))
			content := entry + "\n"
			if existing != "" {
				content = strings.TrimRight(existing, "\n") + "\n" + content
			}

			file, err := d.Indexer.IngestBytes(ctx, scope.ProjectID, name, []byte(content))
			if err != nil {
				return Fail("addNote", "%v", err)
			}

			return Ok("addNote", map[string]any{
				"fileId": file.ID,
				"file":   file.Name,
				"note":   note,
			}).WithPersisted()
		},
	}
}

package tools

import (
	"context"

	"doclore/internal/store"
)

// NewCreateProjectTool returns the project creation tool. Creation is
// an upsert: asking for an existing name returns that project.
func NewCreateProjectTool(d Deps) *Tool {
	return &Tool{
		Name:        "createProject",
		Description: "Create a project, or return the existing one with that name.",
		Mutating:    true,
		Schema: Schema{
			Required: []string{"name"},
			Properties: map[string]Property{
				"name": {
					Type:        "string",
					Description: "Project name (unique, case-insensitive)",
				},
				"description": {
					Type:        "string",
					Description: "Optional project description",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			name, err := RequiredString(params, "name")
			if err != nil {
				return Fail("createProject", "%v", err)
			}

			project, created, err := d.Store.CreateProject(name, StringParam(params, "description", ""))
			if err != nil {
				return Fail("createProject", "%v", err)
			}

			res := Ok("createProject", map[string]any{
				"projectId": project.ID,
				"name":      project.Name,
				"created":   created,
			}).WithMeta("created", created)
			if created {
				res = res.WithPersisted()
			}
			return res
		},
	}
}

// NewMoveFileTool returns the tool that moves a file between projects.
func NewMoveFileTool(d Deps) *Tool {
	return &Tool{
		Name:        "moveFile",
		Description: "Move a file into another project.",
		Mutating:    true,
		Schema: Schema{
			Required: []string{"file", "targetProject"},
			Properties: map[string]Property{
				"file": {
					Type:        "string",
					Description: "File name (fuzzy matched) or file id",
				},
				"project": {
					Type:        "string",
					Description: "Project the file currently lives in; defaults to the session scope",
				},
				"targetProject": {
					Type:        "string",
					Description: "Destination project name or id",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			ref, err := RequiredString(params, "file")
			if err != nil {
				return Fail("moveFile", "%v", err)
			}
			targetRef, err := RequiredString(params, "targetProject")
			if err != nil {
				return Fail("moveFile", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("moveFile", "%v", err)
			}

			file, err := locateFile(d.Store, scope, ref)
			if err != nil {
				return Fail("moveFile", "%v", err)
			}
			target, err := resolveProject(d.Store, targetRef)
			if err != nil {
				return Fail("moveFile", "%v", err)
			}
			if file.ProjectID == target.ID {
				return Fail("moveFile", "%s is already in project %s", file.Name, target.Name)
			}

			if err := d.Store.MoveFile(file.ID, target.ID); err != nil {
				return Fail("moveFile", "%v", err)
			}

			return Ok("moveFile", map[string]any{
				"fileId":        file.ID,
				"file":          file.Name,
				"fromProjectId": file.ProjectID,
				"toProjectId":   target.ID,
				"toProject":     target.Name,
			}).WithPersisted()
		},
	}
}

// NewDeleteFileTool returns the file deletion tool. Chunks, embeddings,
// and version history go with the file.
func NewDeleteFileTool(d Deps) *Tool {
	return &Tool{
		Name:        "deleteFile",
		Description: "Delete a file and everything derived from it (chunks, embeddings, versions).",
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
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			ref, err := RequiredString(params, "file")
			if err != nil {
				return Fail("deleteFile", "%v", err)
			}
			scope, err = resolveScope(d.Store, params, scope)
			if err != nil {
				return Fail("deleteFile", "%v", err)
			}

			file, err := locateFile(d.Store, scope, ref)
			if err != nil {
				return Fail("deleteFile", "%v", err)
			}
			if err := d.Store.DeleteFile(file.ID); err != nil {
				return Fail("deleteFile", "%v", err)
			}

			return Ok("deleteFile", map[string]any{
				"fileId":  file.ID,
				"file":    file.Name,
				"deleted": true,
			}).WithPersisted()
		},
	}
}

// NewDeleteProjectTool returns the project deletion tool. The cascade
// takes all of the project's files and their derived data.
func NewDeleteProjectTool(d Deps) *Tool {
	return &Tool{
		Name:        "deleteProject",
		Description: "Delete a project and all of its files. Irreversible.",
		Mutating:    true,
		Schema: Schema{
			Required: []string{"project"},
			Properties: map[string]Property{
				"project": {
					Type:        "string",
					Description: "Project name or id",
				},
			},
		},
		Execute: func(ctx context.Context, params map[string]any, scope store.Scope) *Result {
			ref, err := RequiredString(params, "project")
			if err != nil {
				return Fail("deleteProject", "%v", err)
			}

			project, err := resolveProject(d.Store, ref)
			if err != nil {
				return Fail("deleteProject", "%v", err)
			}
			stats, err := d.Store.GetProjectStats(project.ID)
			if err != nil {
				return Fail("deleteProject", "%v", err)
			}
			if err := d.Store.DeleteProject(project.ID); err != nil {
				return Fail("deleteProject", "%v", err)
			}

			return Ok("deleteProject", map[string]any{
				"projectId":    project.ID,
				"name":         project.Name,
				"deletedFiles": stats.FileCount,
			}).WithPersisted()
		},
	}
}

package tools

import (
	"errors"
	"fmt"

	"github.com/sahilm/fuzzy"

	"doclore/internal/logging"
	"doclore/internal/store"
)

// locateFile resolves a file reference within the scope: exact id, then
// case-insensitive name, then fuzzy name match.
func locateFile(s *store.Store, scope store.Scope, ref string) (*store.File, error) {
	if file, err := s.GetFile(ref); err == nil {
		return file, nil
	}
	if file, err := s.GetFileByName(scope, ref); err == nil {
		return file, nil
	} else if !errors.Is(err, store.ErrFileNotFound) {
		return nil, err
	}

	files, err := s.ListFiles(scope)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}

	matches := fuzzy.Find(ref, names)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", store.ErrFileNotFound, ref)
	}

	best := files[matches[0].Index]
	logging.ToolsDebug("Fuzzy-matched %q to %s (score=%d)", ref, best.Name, matches[0].Score)
	return best, nil
}

// resolveProject resolves a project reference: exact id, then
// case-insensitive name.
func resolveProject(s *store.Store, ref string) (*store.Project, error) {
	if p, err := s.GetProject(ref); err == nil {
		return p, nil
	}
	return s.GetProjectByName(ref)
}

// resolveScope returns the scope a tool should operate in: an explicit
// project parameter wins over the session scope.
func resolveScope(s *store.Store, params map[string]any, scope store.Scope) (store.Scope, error) {
	ref := StringParam(params, "project", "")
	if ref == "" {
		return scope, nil
	}
	p, err := resolveProject(s, ref)
	if err != nil {
		return store.Scope{}, err
	}
	return store.Scope{ProjectID: p.ID}, nil
}

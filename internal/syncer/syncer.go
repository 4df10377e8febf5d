// Package syncer reconciles the retrieval store with a directory tree
// on disk, in both directions. The store is the source of truth for
// structure (one subdirectory per project); content flows whichever way
// is newer. Concurrent external edits during a pass are an accepted
// race: last modified wins, no locks.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"doclore/internal/docproc"
	"doclore/internal/ingest"
	"doclore/internal/logging"
	"doclore/internal/store"
)

// EventType classifies sync events.
type EventType string

const (
	// EventExported: database content was written to disk.
	EventExported EventType = "exported"
	// EventImported: disk content was ingested into the database.
	EventImported EventType = "imported"
	// EventConflict: both sides changed since the last pass; the newer
	// side won (SyncConflict is surfaced, not blocked on).
	EventConflict EventType = "conflict"
)

// Event is one reconciliation action, delivered on the Events channel.
type Event struct {
	Type    EventType
	Project string
	File    string
	Path    string
	// Winner is "filesystem" or "database"; set on conflicts.
	Winner string
}

// Syncer drives reconciliation passes and, optionally, a filesystem
// watch loop.
type Syncer struct {
	store   *store.Store
	indexer *ingest.Indexer
	dir     string

	events chan Event

	// lastPass separates "changed since we last looked" from stale
	// timestamps; zero on the first pass, so the first pass never
	// reports conflicts.
	lastPass time.Time
}

func New(s *store.Store, indexer *ingest.Indexer, dir string) *Syncer {
	return &Syncer{
		store:   s,
		indexer: indexer,
		dir:     dir,
		events:  make(chan Event, 64),
	}
}

// Events returns the sync event stream. Events are dropped, not
// blocked on, when no one is listening.
func (sy *Syncer) Events() <-chan Event { return sy.events }

// SyncOnce runs one full reconciliation pass: every database file is
// compared with its on-disk counterpart, and on-disk files unknown to
// the database are imported.
func (sy *Syncer) SyncOnce(ctx context.Context) error {
	passStart := time.Now()

	projects, err := sy.store.ListProjects()
	if err != nil {
		return err
	}

	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sy.syncProject(ctx, project); err != nil {
			return fmt.Errorf("sync of project %s failed: %w", project.Name, err)
		}
	}

	if err := sy.importUnknown(ctx, projects); err != nil {
		return err
	}

	sy.lastPass = passStart
	logging.Sync("Reconciliation pass complete (%d projects)", len(projects))
	return nil
}

func (sy *Syncer) syncProject(ctx context.Context, project *store.Project) error {
	projectDir := filepath.Join(sy.dir, safeName(project.Name))
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return err
	}

	files, err := sy.store.ListFiles(store.Scope{ProjectID: project.ID})
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sy.syncFile(ctx, project, file, filepath.Join(projectDir, file.Name)); err != nil {
			logging.Get(logging.CategorySync).Warn("Skipping %s/%s: %v", project.Name, file.Name, err)
		}
	}
	return nil
}

// syncFile reconciles one database file with its path on disk.
func (sy *Syncer) syncFile(ctx context.Context, project *store.Project, file *store.File, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return sy.export(project, file, path)
	}
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if string(data) == file.Content {
		return nil // already reconciled
	}

	dbChanged := file.UpdatedAt.After(sy.lastPass)
	fsChanged := info.ModTime().After(sy.lastPass)
	conflict := dbChanged && fsChanged && !sy.lastPass.IsZero()

	// Newer side wins.
	if info.ModTime().After(file.UpdatedAt) {
		if _, err := sy.indexer.IngestBytes(ctx, project.ID, file.Name, data); err != nil {
			return err
		}
		sy.emit(Event{Type: pick(conflict, EventConflict, EventImported),
			Project: project.Name, File: file.Name, Path: path, Winner: pick(conflict, "filesystem", "")})
		logging.Sync("Imported %s/%s (disk newer)", project.Name, file.Name)
		return nil
	}

	if err := sy.export(project, file, path); err != nil {
		return err
	}
	if conflict {
		sy.emit(Event{Type: EventConflict, Project: project.Name, File: file.Name, Path: path, Winner: "database"})
	}
	return nil
}

// export writes database content to disk and records the path.
func (sy *Syncer) export(project *store.Project, file *store.File, path string) error {
	if err := os.WriteFile(path, []byte(file.Content), 0o644); err != nil {
		return err
	}
	if file.SystemFilePath != path {
		if err := sy.store.SetFileSystemPath(file.ID, path); err != nil {
			return err
		}
	}
	sy.emit(Event{Type: EventExported, Project: project.Name, File: file.Name, Path: path})
	logging.Sync("Exported %s/%s", project.Name, file.Name)
	return nil
}

// importUnknown walks the sync tree for files the database has never
// seen. Top-level directories map to projects, created on demand.
func (sy *Syncer) importUnknown(ctx context.Context, known []*store.Project) error {
	entries, err := os.ReadDir(sy.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	byDir := make(map[string]*store.Project, len(known))
	for _, p := range known {
		byDir[safeName(p.Name)] = p
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		project := byDir[entry.Name()]
		if project == nil {
			project, _, err = sy.store.CreateProject(entry.Name(), "imported from sync directory")
			if err != nil {
				return err
			}
			logging.Sync("Created project %s from sync directory", project.Name)
		}

		projectDir := filepath.Join(sy.dir, entry.Name())
		dirents, err := os.ReadDir(projectDir)
		if err != nil {
			return err
		}
		for _, dirent := range dirents {
			if dirent.IsDir() {
				continue
			}
			name := dirent.Name()
			if _, err := sy.store.GetFileByName(store.Scope{ProjectID: project.ID}, name); err == nil {
				continue // reconciled by syncProject
			} else if !errors.Is(err, store.ErrFileNotFound) {
				return err
			}
			if err := sy.importNew(ctx, project, filepath.Join(projectDir, name)); err != nil {
				logging.Get(logging.CategorySync).Warn("Skipping import of %s: %v", name, err)
			}
		}
	}
	return nil
}

func (sy *Syncer) importNew(ctx context.Context, project *store.Project, path string) error {
	name := filepath.Base(path)
	if docproc.DetectType(name) != "md" && docproc.DetectType(name) != "txt" {
		return fmt.Errorf("unsupported file type")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	file, err := sy.indexer.IngestBytes(ctx, project.ID, name, data)
	if err != nil {
		return err
	}
	if err := sy.store.SetFileSystemPath(file.ID, path); err != nil {
		return err
	}
	sy.emit(Event{Type: EventImported, Project: project.Name, File: name, Path: path})
	logging.Sync("Imported new file %s/%s", project.Name, name)
	return nil
}

// Watch runs reconciliation continuously: an initial full pass, then
// incremental imports driven by filesystem notifications until the
// context is cancelled. Cancellation is a normal shutdown, not an
// error.
func (sy *Syncer) Watch(ctx context.Context) error {
	if err := sy.SyncOnce(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(sy.dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(sy.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if err := watcher.Add(filepath.Join(sy.dir, entry.Name())); err != nil {
				return err
			}
		}
	}

	logging.Sync("Watching %s", sy.dir)
	for {
		select {
		case <-ctx.Done():
			logging.Sync("Watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			sy.handleFsEvent(ctx, watcher, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategorySync).Warn("Watcher error: %v", err)
		}
	}
}

func (sy *Syncer) handleFsEvent(ctx context.Context, watcher *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return // already gone
	}
	if info.IsDir() {
		// New project directory: watch it and pick up its contents on
		// the next notification or pass.
		if event.Has(fsnotify.Create) {
			_ = watcher.Add(event.Name)
		}
		return
	}

	rel, err := filepath.Rel(sy.dir, event.Name)
	if err != nil {
		return
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return // not <project>/<file>
	}

	project, err := sy.store.GetProjectByName(parts[0])
	if err != nil {
		project, _, err = sy.store.CreateProject(parts[0], "imported from sync directory")
		if err != nil {
			logging.Get(logging.CategorySync).Warn("Cannot map %s to a project: %v", event.Name, err)
			return
		}
	}

	data, err := os.ReadFile(event.Name)
	if err != nil {
		return
	}
	existing, err := sy.store.GetFileByName(store.Scope{ProjectID: project.ID}, parts[1])
	if err == nil && existing.Content == string(data) {
		return // our own export echoing back
	}

	if docproc.DetectType(parts[1]) != "md" && docproc.DetectType(parts[1]) != "txt" {
		return
	}
	file, err := sy.indexer.IngestBytes(ctx, project.ID, parts[1], data)
	if err != nil {
		logging.Get(logging.CategorySync).Warn("Import of %s failed: %v", event.Name, err)
		return
	}
	_ = sy.store.SetFileSystemPath(file.ID, event.Name)
	sy.emit(Event{Type: EventImported, Project: project.Name, File: parts[1], Path: event.Name})
	logging.Sync("Imported %s/%s (watch)", project.Name, parts[1])
}

func (sy *Syncer) emit(ev Event) {
	select {
	case sy.events <- ev:
	default:
		logging.SyncDebug("Event buffer full, dropping %s for %s", ev.Type, ev.File)
	}
}

// safeName makes a project name usable as a directory name.
func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}

// pick is a small conditional helper for event construction.
func pick[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

// Package version implements diff-based file history: full-content
// snapshots interleaved with patch records. Any version is reconstructed
// by applying, in order, every record from the nearest preceding full
// snapshot. Patches use the diff-match-patch text format so the chain is
// serializable and survives round trips.
package version

import (
	"errors"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"doclore/internal/logging"
	"doclore/internal/store"
)

// Version sources.
const (
	SourceCreate  = "create"
	SourceUpdate  = "update"
	SourceFormat  = "format"
	SourceRestore = "restore"
)

// DefaultFullEvery controls how often a full snapshot is written instead
// of a patch, bounding reconstruction cost.
const DefaultFullEvery = 10

var (
	// ErrPatchApply marks an integrity failure in the patch chain. The
	// caller receives the nearest reconstructable full content alongside
	// this error rather than corrupted state.
	ErrPatchApply = errors.New("patch application failed")

	// ErrNoVersions means the file has no history yet.
	ErrNoVersions = errors.New("file has no versions")
)

// Manager provides version history on top of the store.
type Manager struct {
	store     *store.Store
	dmp       *diffmatchpatch.DiffMatchPatch
	fullEvery int
}

// NewManager creates a version manager. fullEvery <= 0 uses the default.
func NewManager(s *store.Store, fullEvery int) *Manager {
	if fullEvery <= 0 {
		fullEvery = DefaultFullEvery
	}
	return &Manager{
		store:     s,
		dmp:       diffmatchpatch.New(),
		fullEvery: fullEvery,
	}
}

// Create appends a new version capturing content. Version 1 is always a
// full snapshot; later versions are patches against the previous state,
// with a full snapshot every fullEvery versions.
func (m *Manager) Create(fileID, content, source string) (*store.FileVersion, error) {
	latest, err := m.store.LatestVersionNumber(fileID)
	if err != nil {
		return nil, err
	}
	n := latest + 1

	v := &store.FileVersion{
		FileID:        fileID,
		VersionNumber: n,
		Source:        source,
	}

	if n == 1 || (n-1)%m.fullEvery == 0 {
		v.IsFullContent = true
		v.ContentOrPatch = content
	} else {
		prev, err := m.Reconstruct(fileID, latest)
		if err != nil {
			// A broken chain must not cascade: snapshot full content so
			// everything after this point reconstructs cleanly.
			logging.Get(logging.CategoryVersion).Warn(
				"Reconstruction of v%d failed for %s, writing full snapshot: %v", latest, fileID, err)
			v.IsFullContent = true
			v.ContentOrPatch = content
		} else {
			patches := m.dmp.PatchMake(prev, content)
			v.IsFullContent = false
			v.ContentOrPatch = m.dmp.PatchToText(patches)
		}
	}

	if err := m.store.InsertVersion(v); err != nil {
		return nil, err
	}

	logging.VersionDebug("Created version %d for file %s (full=%v, source=%s)", n, fileID, v.IsFullContent, source)
	return v, nil
}

// Reconstruct rebuilds the exact content of version n. On patch failure
// it returns the content of the nearest preceding full snapshot together
// with ErrPatchApply.
func (m *Manager) Reconstruct(fileID string, n int) (string, error) {
	versions, err := m.store.ListVersions(fileID)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", ErrNoVersions
	}

	// Locate the nearest full snapshot at or before n.
	baseIdx := -1
	for i, v := range versions {
		if v.VersionNumber > n {
			break
		}
		if v.IsFullContent {
			baseIdx = i
		}
	}
	if baseIdx < 0 {
		return "", fmt.Errorf("%w: no full-content version at or before %d", store.ErrVersionNotFound, n)
	}

	content := versions[baseIdx].ContentOrPatch
	found := versions[baseIdx].VersionNumber == n

	for _, v := range versions[baseIdx+1:] {
		if v.VersionNumber > n {
			break
		}
		patches, err := m.dmp.PatchFromText(v.ContentOrPatch)
		if err != nil {
			return content, fmt.Errorf("%w: corrupt patch at version %d: %v", ErrPatchApply, v.VersionNumber, err)
		}
		applied, results := m.dmp.PatchApply(patches, content)
		for _, ok := range results {
			if !ok {
				return content, fmt.Errorf("%w: hunk rejected at version %d", ErrPatchApply, v.VersionNumber)
			}
		}
		content = applied
		found = found || v.VersionNumber == n
	}

	if !found {
		return "", fmt.Errorf("%w: version %d", store.ErrVersionNotFound, n)
	}
	return content, nil
}

// Latest reconstructs the most recent version.
func (m *Manager) Latest(fileID string) (string, int, error) {
	n, err := m.store.LatestVersionNumber(fileID)
	if err != nil {
		return "", 0, err
	}
	if n == 0 {
		return "", 0, ErrNoVersions
	}
	content, err := m.Reconstruct(fileID, n)
	return content, n, err
}

// Prune keeps only the last keep versions. The oldest kept version is
// converted to full content first so every kept version remains
// reconstructable.
func (m *Manager) Prune(fileID string, keep int) error {
	if keep < 1 {
		keep = 1
	}

	latest, err := m.store.LatestVersionNumber(fileID)
	if err != nil {
		return err
	}
	if latest == 0 || latest <= keep {
		return nil
	}

	oldestKept := latest - keep + 1
	content, err := m.Reconstruct(fileID, oldestKept)
	if err != nil {
		return fmt.Errorf("cannot prune: %w", err)
	}

	if err := m.store.ReplaceVersion(&store.FileVersion{
		FileID:         fileID,
		VersionNumber:  oldestKept,
		IsFullContent:  true,
		ContentOrPatch: content,
		Source:         SourceFormat,
	}); err != nil {
		return err
	}

	if err := m.store.DeleteVersionsBelow(fileID, oldestKept); err != nil {
		return err
	}

	logging.Version("Pruned file %s history to %d versions", fileID, keep)
	return nil
}

// Restore writes version n's content back as a new version with source
// "restore" and returns the restored content.
func (m *Manager) Restore(fileID string, n int) (string, error) {
	content, err := m.Reconstruct(fileID, n)
	if err != nil && !errors.Is(err, ErrPatchApply) {
		return "", err
	}
	if errors.Is(err, ErrPatchApply) {
		logging.Get(logging.CategoryVersion).Warn(
			"Restoring file %s v%d from degraded full-content fallback: %v", fileID, n, err)
	}

	if _, err := m.Create(fileID, content, SourceRestore); err != nil {
		return "", err
	}
	return content, nil
}

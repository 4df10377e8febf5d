package version

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclore/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store, string) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p, _, err := s.CreateProject("notes", "")
	require.NoError(t, err)
	f, err := s.CreateFile(p.ID, "draft.md", "md", "")
	require.NoError(t, err)

	return NewManager(s, 0), s, f.ID
}

func TestFirstVersionIsFullContent(t *testing.T) {
	m, _, fileID := newTestManager(t)

	v, err := m.Create(fileID, "hello world", SourceCreate)
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
	assert.True(t, v.IsFullContent)
	assert.Equal(t, "hello world", v.ContentOrPatch)
}

func TestReconstructEveryVersion(t *testing.T) {
	m, _, fileID := newTestManager(t)

	states := []string{
		"The quick brown fox.",
		"The quick brown fox jumps.",
		"The quick brown fox jumps over the lazy dog.",
		"A quick brown fox jumps over the lazy dog.",
		"A quick brown fox jumps over the lazy dog. The end.",
	}
	for _, content := range states {
		_, err := m.Create(fileID, content, SourceUpdate)
		require.NoError(t, err)
	}

	for i, want := range states {
		got, err := m.Reconstruct(fileID, i+1)
		require.NoError(t, err)
		assert.Equal(t, want, got, "version %d", i+1)
	}
}

func TestIntermediateVersionsArePatches(t *testing.T) {
	m, s, fileID := newTestManager(t)

	_, err := m.Create(fileID, "one", SourceCreate)
	require.NoError(t, err)
	_, err = m.Create(fileID, "one two", SourceUpdate)
	require.NoError(t, err)

	versions, err := s.ListVersions(fileID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.True(t, versions[0].IsFullContent)
	assert.False(t, versions[1].IsFullContent)
	assert.NotEqual(t, "one two", versions[1].ContentOrPatch)
}

func TestPeriodicFullSnapshot(t *testing.T) {
	m, s, fileID := newTestManager(t)
	m.fullEvery = 3

	for i := 1; i <= 7; i++ {
		_, err := m.Create(fileID, fmt.Sprintf("revision %d of the document", i), SourceUpdate)
		require.NoError(t, err)
	}

	versions, err := s.ListVersions(fileID)
	require.NoError(t, err)
	require.Len(t, versions, 7)
	for _, v := range versions {
		wantFull := (v.VersionNumber-1)%3 == 0
		assert.Equal(t, wantFull, v.IsFullContent, "version %d", v.VersionNumber)
	}

	got, err := m.Reconstruct(fileID, 7)
	require.NoError(t, err)
	assert.Equal(t, "revision 7 of the document", got)
}

func TestLatest(t *testing.T) {
	m, _, fileID := newTestManager(t)

	_, _, err := m.Latest(fileID)
	assert.ErrorIs(t, err, ErrNoVersions)

	_, err = m.Create(fileID, "a", SourceCreate)
	require.NoError(t, err)
	_, err = m.Create(fileID, "ab", SourceUpdate)
	require.NoError(t, err)

	content, n, err := m.Latest(fileID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab", content)
}

func TestReconstructUnknownVersion(t *testing.T) {
	m, _, fileID := newTestManager(t)

	_, err := m.Create(fileID, "a", SourceCreate)
	require.NoError(t, err)

	_, err = m.Reconstruct(fileID, 5)
	assert.ErrorIs(t, err, store.ErrVersionNotFound)
}

func TestReconstructNoVersions(t *testing.T) {
	m, _, fileID := newTestManager(t)

	_, err := m.Reconstruct(fileID, 1)
	assert.ErrorIs(t, err, ErrNoVersions)
}

func TestCorruptPatchDegradesToFullContent(t *testing.T) {
	m, s, fileID := newTestManager(t)

	_, err := m.Create(fileID, "pristine base", SourceCreate)
	require.NoError(t, err)

	// Sabotage the chain with an unparseable patch row.
	require.NoError(t, s.InsertVersion(&store.FileVersion{
		FileID:         fileID,
		VersionNumber:  2,
		IsFullContent:  false,
		ContentOrPatch: "not a patch",
		Source:         SourceUpdate,
	}))

	got, err := m.Reconstruct(fileID, 2)
	assert.ErrorIs(t, err, ErrPatchApply)
	assert.Equal(t, "pristine base", got)
}

func TestCreateRecoversFromBrokenChain(t *testing.T) {
	m, s, fileID := newTestManager(t)

	_, err := m.Create(fileID, "pristine base", SourceCreate)
	require.NoError(t, err)
	require.NoError(t, s.InsertVersion(&store.FileVersion{
		FileID:         fileID,
		VersionNumber:  2,
		IsFullContent:  false,
		ContentOrPatch: "not a patch",
		Source:         SourceUpdate,
	}))

	// The next write must not inherit the corruption.
	v, err := m.Create(fileID, "fresh content", SourceUpdate)
	require.NoError(t, err)
	assert.True(t, v.IsFullContent)

	got, err := m.Reconstruct(fileID, 3)
	require.NoError(t, err)
	assert.Equal(t, "fresh content", got)
}

func TestPruneKeepsLastVersionsReconstructable(t *testing.T) {
	m, s, fileID := newTestManager(t)

	var states []string
	for i := 1; i <= 8; i++ {
		content := fmt.Sprintf("document body at revision %d", i)
		states = append(states, content)
		_, err := m.Create(fileID, content, SourceUpdate)
		require.NoError(t, err)
	}

	require.NoError(t, m.Prune(fileID, 3))

	versions, err := s.ListVersions(fileID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 6, versions[0].VersionNumber)
	assert.True(t, versions[0].IsFullContent, "oldest kept version must be a full snapshot")

	for n := 6; n <= 8; n++ {
		got, err := m.Reconstruct(fileID, n)
		require.NoError(t, err)
		assert.Equal(t, states[n-1], got)
	}
}

func TestPruneNoopWhenHistoryFits(t *testing.T) {
	m, s, fileID := newTestManager(t)

	_, err := m.Create(fileID, "a", SourceCreate)
	require.NoError(t, err)
	_, err = m.Create(fileID, "ab", SourceUpdate)
	require.NoError(t, err)

	require.NoError(t, m.Prune(fileID, 5))

	versions, err := s.ListVersions(fileID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestRestoreAppendsNewVersion(t *testing.T) {
	m, s, fileID := newTestManager(t)

	_, err := m.Create(fileID, "original text", SourceCreate)
	require.NoError(t, err)
	_, err = m.Create(fileID, "heavily edited text", SourceUpdate)
	require.NoError(t, err)

	content, err := m.Restore(fileID, 1)
	require.NoError(t, err)
	assert.Equal(t, "original text", content)

	versions, err := s.ListVersions(fileID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, SourceRestore, versions[2].Source)

	got, err := m.Reconstruct(fileID, 3)
	require.NoError(t, err)
	assert.Equal(t, "original text", got)
}

func TestIdenticalConsecutiveVersions(t *testing.T) {
	m, _, fileID := newTestManager(t)

	for i := 0; i < 3; i++ {
		_, err := m.Create(fileID, "unchanged", SourceUpdate)
		require.NoError(t, err)
	}

	got, err := m.Reconstruct(fileID, 3)
	require.NoError(t, err)
	assert.Equal(t, "unchanged", got)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	assert.False(t, errors.Is(ErrPatchApply, ErrNoVersions))
	assert.False(t, errors.Is(ErrNoVersions, store.ErrVersionNotFound))
}

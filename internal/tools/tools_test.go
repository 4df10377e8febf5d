package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclore/internal/chunker"
	"doclore/internal/config"
	"doclore/internal/docproc"
	"doclore/internal/ingest"
	"doclore/internal/llm"
	"doclore/internal/store"
	"doclore/internal/version"
)

// keywordEngine maps texts mentioning "apple" to one axis and everything
// else to the other, so search ranking is deterministic.
type keywordEngine struct{}

func (keywordEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(strings.ToLower(text), "apple") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (e keywordEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (keywordEngine) Dimensions() int { return 2 }
func (keywordEngine) Name() string    { return "keyword" }

func newTestDeps(t *testing.T, client llm.Client) (Deps, store.Scope) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	versions := version.NewManager(s, 0)
	engine := keywordEngine{}
	indexer := ingest.NewIndexer(s, engine, docproc.NewProcessor(), versions,
		config.ChunkingConfig{MaxChunkSize: 4000, Overlap: 0})

	d := Deps{
		Store:    s,
		Engine:   engine,
		LLM:      client,
		Versions: versions,
		Indexer:  indexer,
	}

	project, _, err := s.CreateProject("orchard", "test project")
	require.NoError(t, err)
	scope := store.Scope{ProjectID: project.ID}

	_, err = indexer.IngestBytes(context.Background(), project.ID, "apples.md",
		[]byte("# Apples\n\nApple varieties and apple storage."))
	require.NoError(t, err)
	_, err = indexer.IngestBytes(context.Background(), project.ID, "bridges.md",
		[]byte("# Bridges\n\nSuspension bridge engineering."))
	require.NoError(t, err)

	return d, scope
}

func execute(t *testing.T, d Deps, scope store.Scope, name string, params map[string]any) *Result {
	t.Helper()
	reg := NewRegistry()
	RegisterAll(reg, d)
	return reg.Execute(context.Background(), name, params, scope)
}

// ===== REGISTRY =====

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	tool := &Tool{Name: "noop", Execute: func(context.Context, map[string]any, store.Scope) *Result {
		return Ok("noop", nil)
	}}
	require.NoError(t, reg.Register(tool))
	err := reg.Register(tool)
	require.ErrorIs(t, err, ErrToolAlreadyRegistered)
}

func TestRegistryUnknownToolFailsSoftly(t *testing.T) {
	reg := NewRegistry()
	res := reg.Execute(context.Background(), "nope", nil, store.Scope{})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestRegistryRecoversFromPanic(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name: "boom",
		Execute: func(context.Context, map[string]any, store.Scope) *Result {
			panic("kaboom")
		},
	})

	res := reg.Execute(context.Background(), "boom", nil, store.Scope{})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")
}

func TestRegistryEnforcesRequiredParams(t *testing.T) {
	called := false
	reg := NewRegistry()
	reg.MustRegister(&Tool{
		Name:   "needy",
		Schema: Schema{Required: []string{"query"}},
		Execute: func(context.Context, map[string]any, store.Scope) *Result {
			called = true
			return Ok("needy", nil)
		},
	})

	res := reg.Execute(context.Background(), "needy", map[string]any{}, store.Scope{})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "missing required parameter")
	assert.False(t, called)
}

func TestRegistryNamesSorted(t *testing.T) {
	d, _ := newTestDeps(t, llm.NewScriptedClient())
	reg := NewRegistry()
	RegisterAll(reg, d)

	names := reg.Names()
	assert.Len(t, names, 11)
	assert.True(t, sortedStrings(names))
	assert.True(t, reg.Has("updateFile"))
}

func sortedStrings(names []string) bool {
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			return false
		}
	}
	return true
}

// ===== READ =====

func TestReadFuzzyMatchesName(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "read", map[string]any{"file": "appl"})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	assert.Equal(t, "apples.md", data["file"])
	assert.Contains(t, data["content"].(string), "Apple varieties")
	assert.False(t, data["truncated"].(bool))
}

func TestReadTruncatesLargeContent(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "read", map[string]any{
		"file":     "apples.md",
		"maxChars": float64(10), // JSON numbers decode as float64
	})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	assert.True(t, data["truncated"].(bool))
	assert.Len(t, data["content"].(string), 10)
	assert.Greater(t, data["totalChars"].(int), 10)
}

func TestReadUnknownFileFails(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "read", map[string]any{"file": "zzzqqq"})
	require.False(t, res.Success)
}

// ===== SEARCH =====

func TestSearchRanksRelevantFileFirst(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "search", map[string]any{"query": "apple recipes"})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	snippets := data["snippets"].([]map[string]any)
	require.NotEmpty(t, snippets)
	assert.Equal(t, "apples.md", snippets[0]["file"])
	assert.Equal(t, len(snippets), res.Metadata["count"])
}

// ===== SUMMARIZE =====

func TestSummarizeDirect(t *testing.T) {
	script := llm.NewScriptedClient("A short summary.")
	d, scope := newTestDeps(t, script)

	res := execute(t, d, scope, "summarize", map[string]any{"file": "apples.md"})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	assert.Equal(t, "A short summary.", data["summary"])
	assert.Equal(t, "direct", res.Metadata["strategy"])
	assert.Len(t, script.Calls(), 1)
}

func TestSummarizeHierarchical(t *testing.T) {
	script := llm.NewScriptedClient("partial one", "partial two", "partial three", "combined summary")
	d, scope := newTestDeps(t, script)

	// Three 7k chunks force three map groups plus a reduce call.
	file, err := d.Store.CreateFile(scope.ProjectID, "tome.md", "md", strings.Repeat("x", 21000))
	require.NoError(t, err)
	chunks := []chunker.Chunk{
		{Index: 0, Text: strings.Repeat("a", 7000)},
		{Index: 1, Text: strings.Repeat("b", 7000)},
		{Index: 2, Text: strings.Repeat("c", 7000)},
	}
	_, err = d.Store.ReplaceChunks(file.ID, scope.ProjectID, chunks)
	require.NoError(t, err)

	res := execute(t, d, scope, "summarize", map[string]any{"file": "tome.md"})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	assert.Equal(t, "combined summary", data["summary"])
	assert.Equal(t, "hierarchical", res.Metadata["strategy"])
	assert.Len(t, script.Calls(), 4)
}

// ===== WRITE =====

func TestWriteWithExplicitContent(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "write", map[string]any{
		"name":    "pears",
		"content": "# Pears\n\nPear facts.",
	})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.PersistedChanges)
	assert.Equal(t, false, res.Metadata["synthesized"])

	file, err := d.Store.GetFileByName(scope, "pears.md")
	require.NoError(t, err)
	assert.Contains(t, file.Content, "Pear facts")
}

func TestWriteSynthesizesFromTopic(t *testing.T) {
	script := llm.NewScriptedClient("# Apple Report\n\nSynthesized from context.")
	d, scope := newTestDeps(t, script)

	res := execute(t, d, scope, "write", map[string]any{
		"name":  "report",
		"topic": "apple storage",
	})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, true, res.Metadata["synthesized"])

	file, err := d.Store.GetFileByName(scope, "report.md")
	require.NoError(t, err)
	assert.Contains(t, file.Content, "Synthesized from context")

	// The synthesis prompt carries the retrieved chunks.
	calls := script.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "apples.md")
}

func TestWriteRequiresProjectScope(t *testing.T) {
	d, _ := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, store.Scope{}, "write", map[string]any{
		"name":    "orphan",
		"content": "text",
	})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "project scope")
}

// ===== UPDATE FILE =====

func TestUpdateFileTwoPhase(t *testing.T) {
	script := llm.NewScriptedClient("# Apples\n\nApple varieties, apple storage, and apple cider.")
	d, scope := newTestDeps(t, script)

	preview := execute(t, d, scope, "updateFile", map[string]any{
		"file":        "apples.md",
		"instruction": "mention cider",
	})
	require.True(t, preview.Success, preview.Error)
	assert.Equal(t, true, preview.Metadata["requiresConfirmation"])
	assert.False(t, preview.PersistedChanges)

	prop := preview.Data.(UpdatePreview)
	assert.Contains(t, prop.ProposedContent, "apple cider")
	assert.NotEmpty(t, prop.Diff)
	assert.Contains(t, prop.UnifiedDiff, "+")

	// Nothing changed yet.
	file, err := d.Store.GetFileByName(scope, "apples.md")
	require.NoError(t, err)
	assert.NotContains(t, file.Content, "cider")
	versionsBefore, err := d.Store.ListVersions(file.ID)
	require.NoError(t, err)

	applied := execute(t, d, scope, "updateFile", map[string]any{
		"file":            "apples.md",
		"confirm":         true,
		"proposedContent": prop.ProposedContent,
	})
	require.True(t, applied.Success, applied.Error)
	assert.True(t, applied.PersistedChanges)

	file, err = d.Store.GetFileByName(scope, "apples.md")
	require.NoError(t, err)
	assert.Contains(t, file.Content, "apple cider")

	versionsAfter, err := d.Store.ListVersions(file.ID)
	require.NoError(t, err)
	assert.Len(t, versionsAfter, len(versionsBefore)+1)
}

func TestUpdateFileConfirmRequiresProposedContent(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "updateFile", map[string]any{
		"file":    "apples.md",
		"confirm": true,
	})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "proposedContent")
}

func TestUpdateFileSectionTargeting(t *testing.T) {
	content := "# Guide\n\nIntro text.\n\n## Setup\n\nOld setup steps.\n\n## Usage\n\nUsage text.\n"
	script := llm.NewScriptedClient("## Setup\n\nNew setup steps.")
	d, scope := newTestDeps(t, script)

	_, err := d.Indexer.IngestBytes(context.Background(), scope.ProjectID, "guide.md", []byte(content))
	require.NoError(t, err)

	res := execute(t, d, scope, "updateFile", map[string]any{
		"file":        "guide.md",
		"section":     "setup",
		"instruction": "rewrite the setup steps",
	})
	require.True(t, res.Success, res.Error)

	prop := res.Data.(UpdatePreview)
	assert.Equal(t, "Setup", prop.Section)
	assert.Contains(t, prop.ProposedContent, "New setup steps")
	assert.Contains(t, prop.ProposedContent, "Usage text") // untouched sections survive
	assert.NotContains(t, prop.ProposedContent, "Old setup steps")

	// The model only sees the targeted section, not the whole file.
	calls := script.Calls()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].Messages[0].Content, "Intro text")
}

func TestTargetSectionLineRange(t *testing.T) {
	content := "one\ntwo\nthree\nfour"
	section, label, err := targetSection(content, map[string]any{
		"lineStart": float64(2),
		"lineEnd":   float64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "two\nthree", section)
	assert.Equal(t, "lines 2-3", label)

	_, _, err = targetSection(content, map[string]any{"lineStart": float64(9)})
	require.Error(t, err)
}

// ===== PROJECT MANAGEMENT =====

func TestCreateProjectUpsert(t *testing.T) {
	d, _ := newTestDeps(t, llm.NewScriptedClient())

	created := execute(t, d, store.Scope{}, "createProject", map[string]any{
		"name":        "notes",
		"description": "scratch space",
	})
	require.True(t, created.Success, created.Error)
	assert.True(t, created.PersistedChanges)
	assert.Equal(t, true, created.Metadata["created"])

	again := execute(t, d, store.Scope{}, "createProject", map[string]any{"name": "notes"})
	require.True(t, again.Success, again.Error)
	assert.Equal(t, false, again.Metadata["created"])
	assert.False(t, again.PersistedChanges)
}

func TestMoveFileBetweenProjects(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())
	target, _, err := d.Store.CreateProject("archive", "")
	require.NoError(t, err)

	res := execute(t, d, scope, "moveFile", map[string]any{
		"file":          "bridges.md",
		"targetProject": "archive",
	})
	require.True(t, res.Success, res.Error)

	moved, err := d.Store.GetFileByName(store.Scope{ProjectID: target.ID}, "bridges.md")
	require.NoError(t, err)
	assert.Equal(t, target.ID, moved.ProjectID)

	// Moving again into the same project is rejected.
	res = execute(t, d, store.Scope{ProjectID: target.ID}, "moveFile", map[string]any{
		"file":          "bridges.md",
		"targetProject": "archive",
	})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "already in project")
}

func TestDeleteFileCascades(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())
	file, err := d.Store.GetFileByName(scope, "apples.md")
	require.NoError(t, err)

	res := execute(t, d, scope, "deleteFile", map[string]any{"file": "apples.md"})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.PersistedChanges)

	_, err = d.Store.GetFile(file.ID)
	require.ErrorIs(t, err, store.ErrFileNotFound)
	chunks, err := d.Store.GetChunks(file.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDeleteProjectCascades(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "deleteProject", map[string]any{"project": "orchard"})
	require.True(t, res.Success, res.Error)

	data := res.Data.(map[string]any)
	assert.Equal(t, 2, data["deletedFiles"])

	_, err := d.Store.GetProjectByName("orchard")
	require.ErrorIs(t, err, store.ErrProjectNotFound)
	files, err := d.Store.ListFiles(store.Scope{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

// ===== WEB RESEARCH =====

func TestWebResearchUnconfiguredFailsSoftly(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())
	d.Research = nil

	res := execute(t, d, scope, "webResearch", map[string]any{"query": "anything"})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "not configured")
}

// ===== NOTES =====

func TestAddNoteCreatesAndAppends(t *testing.T) {
	d, scope := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, scope, "addNote", map[string]any{"note": "first thought"})
	require.True(t, res.Success, res.Error)
	assert.True(t, res.PersistedChanges)

	res = execute(t, d, scope, "addNote", map[string]any{"note": "second thought"})
	require.True(t, res.Success, res.Error)

	file, err := d.Store.GetFileByName(scope, "notes.md")
	require.NoError(t, err)
	assert.Contains(t, file.Content, "first thought")
	assert.Contains(t, file.Content, "second thought")
	assert.Less(t,
		strings.Index(file.Content, "first thought"),
		strings.Index(file.Content, "second thought"))
}

func TestAddNoteRequiresProjectScope(t *testing.T) {
	d, _ := newTestDeps(t, llm.NewScriptedClient())

	res := execute(t, d, store.Scope{}, "addNote", map[string]any{"note": "lost"})
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "project scope")
}

package store

import "time"

// =============================================================================
// RECORD TYPES
// =============================================================================

// ProjectStatus tracks a project's ingestion lifecycle.
type ProjectStatus string

const (
	ProjectCreated  ProjectStatus = "created"
	ProjectIndexing ProjectStatus = "indexing"
	ProjectIndexed  ProjectStatus = "indexed"
	ProjectError    ProjectStatus = "error"
)

// FileStatus tracks a file's ingestion lifecycle.
type FileStatus string

const (
	FilePending    FileStatus = "pending"
	FileProcessing FileStatus = "processing"
	FileIndexed    FileStatus = "indexed"
	FileError      FileStatus = "error"
)

// Project is a named collection of ingested files.
type Project struct {
	ID          string
	Name        string
	Description string
	Status      ProjectStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// File is a document owned by exactly one project. Content is the
// canonical extracted text; SystemFilePath links to the sync directory
// copy when filesystem sync is enabled.
type File struct {
	ID             string
	ProjectID      string
	Name           string
	Type           string // pdf, txt, docx, md, image
	Size           int64
	Status         FileStatus
	Content        string
	SystemFilePath string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is one bounded slice of a file's extracted text. Chunks are
// immutable; re-chunking a file replaces the full set.
type Chunk struct {
	ID          string
	FileID      string
	ProjectID   string
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
	CreatedAt   time.Time
}

// Embedding is the vector for exactly one chunk. Dimensionality is fixed
// by the active embedding provider; switching providers invalidates all
// stored embeddings.
type Embedding struct {
	ID        string
	ChunkID   string
	FileID    string
	ProjectID string
	Vector    []float32
	CreatedAt time.Time
}

// SearchResult is one ranked hit from a vector search.
type SearchResult struct {
	ChunkID    string
	FileID     string
	FileName   string
	ProjectID  string
	Index      int
	Text       string
	Similarity float64
}

// FileVersion is one entry in a file's version history. Version 1 is
// always full content; later versions may be patches against the
// preceding reconstructable state.
type FileVersion struct {
	ID             string
	FileID         string
	VersionNumber  int
	IsFullContent  bool
	ContentOrPatch string
	Source         string // create, update, format, restore
	CreatedAt      time.Time
}

// ChatMessage is a single conversation turn.
type ChatMessage struct {
	ID             string          `json:"id"`
	Role           string          `json:"role"` // system, user, assistant
	Content        string          `json:"content"`
	Timestamp      time.Time       `json:"timestamp"`
	ContextChunks  []string        `json:"contextChunks,omitempty"`
	ToolExecutions []ToolExecution `json:"toolExecutions,omitempty"`
}

// ToolExecution records one tool invocation attached to a message.
type ToolExecution struct {
	Tool            string `json:"tool"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	PersistedChange bool   `json:"persistedChange,omitempty"`
}

// ChatSession groups messages under a project scope. An empty ProjectID
// means the global session with cross-project tool access.
type ChatSession struct {
	ID        string
	ProjectID string
	Title     string
	Messages  []ChatMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebCacheEntry is one cached page fetch, keyed by the hash of the
// normalized query plus the page URL.
type WebCacheEntry struct {
	ID        string
	QueryHash string
	URL       string
	Title     string
	Content   string
	FetchedAt time.Time
}

// WebChunk is an embedded chunk of a cached web page.
type WebChunk struct {
	ID         string
	CacheID    string
	Index      int
	Text       string
	Vector     []float32
	Similarity float64
}

// Scope bounds retrieval to a single project, or to all projects when
// ProjectID is empty (global scope).
type Scope struct {
	ProjectID string
}

// Global reports whether the scope spans all projects.
func (s Scope) Global() bool { return s.ProjectID == "" }

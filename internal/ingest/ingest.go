// Package ingest drives the index pipeline: extracted text → chunks →
// embeddings → store, with file status transitions along the way.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"doclore/internal/chunker"
	"doclore/internal/config"
	"doclore/internal/docproc"
	"doclore/internal/embedding"
	"doclore/internal/logging"
	"doclore/internal/store"
	"doclore/internal/version"
)

// embedBatchSize bounds one embedding call during indexing.
const embedBatchSize = 32

// Indexer chunks, embeds, and stores file content.
type Indexer struct {
	store    *store.Store
	engine   embedding.Engine
	proc     *docproc.Processor
	versions *version.Manager
	chunking config.ChunkingConfig
}

func NewIndexer(s *store.Store, engine embedding.Engine, proc *docproc.Processor, versions *version.Manager, chunking config.ChunkingConfig) *Indexer {
	return &Indexer{
		store:    s,
		engine:   engine,
		proc:     proc,
		versions: versions,
		chunking: chunking,
	}
}

// IndexFile re-chunks and re-embeds a file's current content, replacing
// the previous chunk set. Status moves processing → indexed, or error.
func (ix *Indexer) IndexFile(ctx context.Context, file *store.File) error {
	timer := logging.StartTimer(logging.CategoryChunker, "index "+file.Name)
	defer timer.Stop()

	if err := ix.store.SetFileStatus(file.ID, store.FileProcessing); err != nil {
		return err
	}

	err := ix.indexContent(ctx, file)
	if err != nil {
		if statusErr := ix.store.SetFileStatus(file.ID, store.FileError); statusErr != nil {
			logging.Get(logging.CategoryStore).Warn("Failed to mark %s as errored: %v", file.ID, statusErr)
		}
		return err
	}
	return ix.store.SetFileStatus(file.ID, store.FileIndexed)
}

func (ix *Indexer) indexContent(ctx context.Context, file *store.File) error {
	var pieces []chunker.Chunk
	if file.Type == "md" {
		pieces = chunker.SplitMarkdown(file.Content, ix.chunking.MaxChunkSize, ix.chunking.Overlap)
	} else {
		pieces = chunker.Split(file.Content, ix.chunking.MaxChunkSize, ix.chunking.Overlap)
	}

	rows, err := ix.store.ReplaceChunks(file.ID, file.ProjectID, pieces)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	// Embed in bounded batches so one large document cannot blow up a
	// single backend call.
	for start := 0; start < len(rows); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, row := range batch {
			texts[i] = row.Text
		}
		vectors, err := ix.engine.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding failed: %w", err)
		}
		for i, row := range batch {
			if err := ix.store.InsertEmbedding(row.ID, file.ID, file.ProjectID, vectors[i]); err != nil {
				return err
			}
		}
	}

	logging.Embedding("Indexed %s: %d chunks (%s)", file.Name, len(rows), ix.engine.Name())
	return nil
}

// IngestBytes creates (or replaces) a file from raw bytes, records a
// version, and indexes it.
func (ix *Indexer) IngestBytes(ctx context.Context, projectID, name string, data []byte) (*store.File, error) {
	text, fileType, err := ix.proc.Extract(name, data)
	if err != nil {
		return nil, err
	}

	scope := store.Scope{ProjectID: projectID}
	file, err := ix.store.GetFileByName(scope, name)
	source := version.SourceUpdate
	if err != nil {
		file, err = ix.store.CreateFile(projectID, name, fileType, text)
		if err != nil {
			return nil, err
		}
		source = version.SourceCreate
	} else {
		if err := ix.store.UpdateFileContent(file.ID, text); err != nil {
			return nil, err
		}
		file.Content = text
	}

	if _, err := ix.versions.Create(file.ID, text, source); err != nil {
		return nil, err
	}
	if err := ix.IndexFile(ctx, file); err != nil {
		return nil, err
	}
	return file, nil
}

// IngestPath ingests a file from disk and remembers its system path for
// the sync subsystem.
func (ix *Indexer) IngestPath(ctx context.Context, projectID, path string) (*store.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	file, err := ix.IngestBytes(ctx, projectID, filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	if err := ix.store.SetFileSystemPath(file.ID, path); err != nil {
		return nil, err
	}
	file.SystemFilePath = path
	return file, nil
}

// IngestDir ingests every supported file directly under dir, a few files
// at a time.
func (ix *Indexer) IngestDir(ctx context.Context, projectID, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !ix.proc.Supports(entry.Name()) {
			continue
		}
		count++
		path := filepath.Join(dir, entry.Name())
		g.Go(func() error {
			_, err := ix.IngestPath(gctx, projectID, path)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return count, err
	}
	return count, nil
}

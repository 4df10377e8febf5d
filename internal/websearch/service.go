package websearch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"doclore/internal/chunker"
	"doclore/internal/config"
	"doclore/internal/embedding"
	"doclore/internal/logging"
	"doclore/internal/store"
)

// fetchConcurrency bounds parallel page fetches per research call.
const fetchConcurrency = 4

// Source is one attributed research hit.
type Source struct {
	URL        string  `json:"url"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet"`
	Similarity float64 `json:"similarity"`
}

// ResearchResult is a ranked, source-attributed answer to a research
// query.
type ResearchResult struct {
	Query     string   `json:"query"`
	Sources   []Source `json:"sources"`
	FromCache bool     `json:"fromCache"`
	Provider  string   `json:"provider"`
}

/// Service runs the research pipeline: cache lookup, provider query,
// page fetch, chunk/embed/cache store, and vector filtering.
type Service struct {
	store    *store.Store
	engine   embedding.Engine
	provider Provider
	fetcher  Fetcher
	cfg      config.WebSearchConfig
	chunking config.ChunkingConfig
}

func NewService(s *store.Store, engine embedding.Engine, provider Provider, fetcher Fetcher, cfg config.WebSearchConfig, chunking config.ChunkingConfig) *Service {
	return &Service{
		store:    s,
		engine:   engine,
		provider: provider,
		fetcher:  fetcher,
		cfg:      cfg,
		chunking: chunking,
	}
}

// Research answers a query from the TTL cache when possible, otherwise
// by searching, fetching, and indexing pages, then ranks the cached
// chunks against the query vector.
func (s *Service) Research(ctx context.Context, query string, maxResults int) (*ResearchResult, error) {
	if maxResults <= 0 {
		maxResults = s.cfg.MaxResults
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	hash := QueryHash(query)
	maxAge := time.Duration(s.cfg.CacheMaxAge) * time.Minute
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	entries, err := s.store.FreshWebCacheEntries(hash, maxAge)
	if err != nil {
		return nil, err
	}

	result := &ResearchResult{Query: query, Provider: s.provider.Name()}
	if len(entries) > 0 {
		result.FromCache = true
		logging.Search("Research cache hit: %d pages for %q", len(entries), query)
	} else {
		entries, err = s.populate(ctx, hash, query, maxResults)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			logging.Search("Research found nothing for %q", query)
			return result, nil
		}
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	byID := make(map[string]*store.WebCacheEntry, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
		ids = append(ids, e.ID)
	}

	chunks, err := s.store.SearchWebChunks(ctx, ids, queryVec, maxResults)
	if err != nil {
		return nil, err
	}

	for _, c := range chunks {
		src := Source{Snippet: c.Text, Similarity: c.Similarity}
		if entry := byID[c.CacheID]; entry != nil {
			src.URL = entry.URL
			src.Title = entry.Title
		}
		result.Sources = append(result.Sources, src)
	}

	logging.Search("Research completed: %d sources for %q (cache=%v)", len(result.Sources), query, result.FromCache)
	return result, nil
}

// populate runs the provider query and indexes the fetched pages under
// the query hash. Pages that fail to fetch are skipped; the pipeline
// only errors when search itself or embedding fails.
func (s *Service) populate(ctx context.Context, hash, query string, maxResults int) ([]*store.WebCacheEntry, error) {
	hits, err := s.provider.Search(ctx, query, maxResults)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		entries []*store.WebCacheEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	for _, hit := range hits {
		g.Go(func() error {
			page, err := s.fetcher.Fetch(gctx, hit.URL)
			if err != nil {
				logging.Get(logging.CategorySearch).Warn("Skipping %s: %v", hit.URL, err)
				return nil
			}
			if page.Title == "" {
				page.Title = hit.Title
			}

			entry, err := s.indexPage(gctx, hash, page)
			if err != nil {
				return err
			}

			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// indexPage chunks, embeds, and caches one fetched page.
func (s *Service) indexPage(ctx context.Context, hash string, page *Page) (*store.WebCacheEntry, error) {
	pieces := chunker.Split(page.Text, s.chunking.MaxChunkSize, s.chunking.Overlap)

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := s.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %s failed: %w", page.URL, err)
	}

	entry := &store.WebCacheEntry{
		QueryHash: hash,
		URL:       page.URL,
		Title:     page.Title,
		Content:   page.Text,
	}
	chunks := make([]store.WebChunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = store.WebChunk{Index: p.Index, Text: p.Text, Vector: vectors[i]}
	}

	if err := s.store.PutWebCacheEntry(entry, chunks); err != nil {
		return nil, err
	}
	logging.SearchDebug("Indexed %s: %d chunks", page.URL, len(chunks))
	return entry, nil
}

// EvictExpired drops cache entries past the TTL. Meant to run
// periodically or at startup.
func (s *Service) EvictExpired() (int, error) {
	maxAge := time.Duration(s.cfg.CacheMaxAge) * time.Minute
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return s.store.EvictExpiredWebCache(maxAge)
}

package websearch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doclore/internal/config"
	"doclore/internal/store"
)

const ddgFixture = `<html><body>
<div class="links_main">
  <div class="result results_links results_links_deep web-result">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fchunking&amp;rut=abc">Document Chunking Guide</a>
    <a class="result__snippet" href="https://example.com/chunking">How to split documents into overlapping chunks.</a>
  </div>
  <div class="result results_links results_links_deep web-result">
    <a class="result__a" href="https://example.org/embeddings">Embeddings 101</a>
    <a class="result__snippet" href="https://example.org/embeddings">Vector representations of text.</a>
  </div>
</div>
</body></html>`

func TestParseDuckDuckGoResults(t *testing.T) {
	results, err := parseDuckDuckGoResults(ddgFixture, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "Document Chunking Guide", results[0].Title)
	assert.Equal(t, "https://example.com/chunking", results[0].URL, "redirect wrapper should be unwrapped")
	assert.Contains(t, results[0].Snippet, "overlapping chunks")
	assert.Equal(t, "https://example.org/embeddings", results[1].URL)
}

func TestParseDuckDuckGoRespectsMax(t *testing.T) {
	results, err := parseDuckDuckGoResults(ddgFixture, 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueryHashNormalizes(t *testing.T) {
	a := QueryHash("Chunk   Overlap")
	b := QueryHash("chunk overlap")
	c := QueryHash("chunk overlap heuristics")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestUnwrapRedirect(t *testing.T) {
	assert.Equal(t, "https://example.com/x",
		unwrapRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fx&rut=zzz"))
	assert.Equal(t, "https://plain.example.com", unwrapRedirect("https://plain.example.com"))
}

func TestHTMLToTextPrefersArticle(t *testing.T) {
	page := `<html><head><title>Page Title</title></head><body>
	<nav>Home About Contact</nav>
	<article><h1>Real Content</h1><p>The body of the article.</p></article>
	<footer>Copyright</footer>
	</body></html>`

	title, text, err := htmlToText(page)
	require.NoError(t, err)
	assert.Equal(t, "Page Title", title)
	assert.Contains(t, text, "Real Content")
	assert.Contains(t, text, "body of the article")
	assert.NotContains(t, text, "Home About Contact")
	assert.NotContains(t, text, "Copyright")
}

func TestHTMLToTextFallsBackToBody(t *testing.T) {
	page := `<html><body><p>No semantic wrapper here.</p><script>evil()</script></body></html>`

	_, text, err := htmlToText(page)
	require.NoError(t, err)
	assert.Contains(t, text, "No semantic wrapper here.")
	assert.NotContains(t, text, "evil")
}

// ===== service pipeline =====

type fakeProvider struct {
	hits  []SearchResult
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Search(ctx context.Context, query string, max int) ([]SearchResult, error) {
	f.calls++
	return f.hits, f.err
}

type fakeFetcher struct {
	pages map[string]*Page
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	page, ok := f.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return page, nil
}

type unitEngine struct{}

func (unitEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (e unitEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (unitEngine) Dimensions() int { return 2 }
func (unitEngine) Name() string    { return "unit" }

func newTestService(t *testing.T, provider Provider, fetcher Fetcher) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	cfg := config.WebSearchConfig{CacheMaxAge: 60, MaxResults: 5}
	chunking := config.ChunkingConfig{MaxChunkSize: 1000, Overlap: 200}
	return NewService(s, unitEngine{}, provider, fetcher, cfg, chunking), s
}

func TestResearchPopulatesThenHitsCache(t *testing.T) {
	provider := &fakeProvider{hits: []SearchResult{
		{Title: "Chunking Guide", URL: "https://example.com/a"},
		{Title: "Broken Link", URL: "https://example.com/missing"},
	}}
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"https://example.com/a": {URL: "https://example.com/a", Title: "Chunking Guide", Text: "All about overlapping chunks and boundaries."},
	}}
	svc, _ := newTestService(t, provider, fetcher)

	first, err := svc.Research(context.Background(), "chunk overlap", 5)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	require.NotEmpty(t, first.Sources, "failed fetches are skipped, not fatal")
	assert.Equal(t, "https://example.com/a", first.Sources[0].URL)
	assert.Equal(t, "Chunking Guide", first.Sources[0].Title)

	second, err := svc.Research(context.Background(), "Chunk   OVERLAP", 5)
	require.NoError(t, err)
	assert.True(t, second.FromCache, "normalized query should hit the cache")
	assert.Equal(t, 1, provider.calls, "cache hit must not re-query the provider")
}

func TestResearchProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("quota exceeded")}
	svc, _ := newTestService(t, provider, &fakeFetcher{})

	_, err := svc.Research(context.Background(), "anything", 5)
	assert.Error(t, err)
}

func TestResearchNoHits(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{}, &fakeFetcher{})

	result, err := svc.Research(context.Background(), "obscure query", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
	assert.False(t, result.FromCache)
}

func TestNewProviderSelection(t *testing.T) {
	p, err := NewProvider(config.WebSearchConfig{})
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", p.Name())

	p, err = NewProvider(config.WebSearchConfig{Provider: "searxng", SearxNGURL: "http://localhost:8888"})
	require.NoError(t, err)
	assert.Equal(t, "searxng", p.Name())

	_, err = NewProvider(config.WebSearchConfig{Provider: "searxng"})
	assert.Error(t, err)

	_, err = NewProvider(config.WebSearchConfig{Provider: "brave"})
	assert.Error(t, err)

	_, err = NewProvider(config.WebSearchConfig{Provider: "altavista"})
	assert.Error(t, err)
}

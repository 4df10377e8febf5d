// Package websearch implements the web research pipeline: provider
// query, page fetch, chunk/embed, TTL cache, and similarity filtering
// against the original query.
package websearch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"doclore/internal/config"
)

// SearchResult is one provider hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Provider is a pluggable search backend.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
	Name() string
}

// NewProvider builds the configured search provider.
func NewProvider(cfg config.WebSearchConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "duckduckgo":
		return NewDuckDuckGo(), nil
	case "searxng":
		if cfg.SearxNGURL == "" {
			return nil, fmt.Errorf("searxng provider requires a base URL")
		}
		return NewSearxNG(cfg.SearxNGURL), nil
	case "brave":
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("brave provider requires an API key")
		}
		return NewBrave(cfg.BraveAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown search provider: %q", cfg.Provider)
	}
}

// QueryHash returns the cache key for a query: SHA-256 over the
// lowercased, whitespace-normalized query string.
func QueryHash(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

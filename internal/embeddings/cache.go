package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes query embeddings. Repeated questions are common in
// a chat loop and each miss is a network round-trip.
type CachedEmbedder struct {
	impl  Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCached wraps impl with an LRU cache holding up to size vectors.
func NewCached(impl Embedder, size int) (*CachedEmbedder, error) {
	if impl == nil {
		return nil, fmt.Errorf("embedder implementation is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be greater than zero")
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}
	return &CachedEmbedder{impl: impl, cache: cache}, nil
}

// EmbedDocuments embeds only the texts not already cached.
func (c *CachedEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missing := make(map[string][]int)
	var order []string
	for i, text := range texts {
		if v, ok := c.cache.Get(cacheKey(text)); ok {
			results[i] = cloneVector(v)
			continue
		}
		if _, seen := missing[text]; !seen {
			order = append(order, text)
		}
		missing[text] = append(missing[text], i)
	}
	if len(order) == 0 {
		return results, nil
	}

	embedded, err := c.impl.EmbedDocuments(ctx, order)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(order) {
		return nil, fmt.Errorf("received %d embeddings for %d texts", len(embedded), len(order))
	}
	for i, text := range order {
		c.store(text, embedded[i])
		for _, idx := range missing[text] {
			results[idx] = cloneVector(embedded[i])
		}
	}
	return results, nil
}

// EmbedQuery returns the cached vector for text or computes it.
func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(cacheKey(text)); ok {
		return cloneVector(v), nil
	}
	v, err := c.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store(text, v)
	return cloneVector(v), nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) store(text string, v []float32) {
	if len(v) == 0 {
		return
	}
	c.cache.Add(cacheKey(text), cloneVector(v))
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(src []float32) []float32 {
	if len(src) == 0 {
		return nil
	}
	dst := make([]float32, len(src))
	copy(dst, src)
	return dst
}

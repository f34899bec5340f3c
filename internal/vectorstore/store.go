package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/upb/ragqa/internal/rag"
)

// QueryEmbedder embeds a search question.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Option configures a Store at load time.
type Option func(*Store)

// WithEmbedder sets the embedder used to vectorize questions.
func WithEmbedder(e QueryEmbedder) Option {
	return func(s *Store) { s.embedder = e }
}

// WithTopK sets how many chunks Search returns.
func WithTopK(k int) Option {
	return func(s *Store) {
		if k > 0 {
			s.topK = k
		}
	}
}

// Store is a loaded, read-only chunk store with its attached index.
// Safe for concurrent Search.
type Store struct {
	manifest Manifest
	index    *Index
	embedder QueryEmbedder
	topK     int
}

func newStore(m *Manifest, opts ...Option) *Store {
	s := &Store{manifest: *m, topK: DefaultTopK}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach binds the vector index to the chunk records.
func (s *Store) Attach(ix *Index) error {
	if ix == nil {
		return fmt.Errorf("index is nil")
	}
	if ix.Dim != s.manifest.Dim {
		return fmt.Errorf("%w: index dim %d, store dim %d", ErrDimensionMismatch, ix.Dim, s.manifest.Dim)
	}
	if ix.Count != len(s.manifest.Chunks) {
		return fmt.Errorf("%w: index has %d rows, store has %d chunks", ErrDimensionMismatch, ix.Count, len(s.manifest.Chunks))
	}
	s.index = ix
	return nil
}

// Len returns the number of chunks.
func (s *Store) Len() int {
	return len(s.manifest.Chunks)
}

// Dim returns the embedding dimension.
func (s *Store) Dim() int {
	return s.manifest.Dim
}

// EmbeddingModel returns the model the store was built with.
func (s *Store) EmbeddingModel() string {
	return s.manifest.EmbeddingModel
}

// Search returns the top-k chunks most similar to question, best first.
func (s *Store) Search(ctx context.Context, question string) ([]rag.Chunk, error) {
	ranked, err := s.SearchScored(ctx, question)
	if err != nil {
		return nil, err
	}
	out := make([]rag.Chunk, len(ranked))
	for i, r := range ranked {
		out[i] = r.Chunk
	}
	return out, nil
}

// SearchScored is Search with similarity scores attached.
func (s *Store) SearchScored(ctx context.Context, question string) ([]rag.RankedChunk, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	q, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return s.searchVector(q)
}

func (s *Store) searchVector(q []float32) ([]rag.RankedChunk, error) {
	if s.index == nil {
		return nil, ErrNotLoaded
	}
	if len(q) != s.index.Dim {
		return nil, fmt.Errorf("%w: question has %d values, index has %d", ErrVectorLengthMismatch, len(q), s.index.Dim)
	}

	type hit struct {
		row   int
		score float64
	}
	hits := make([]hit, s.index.Count)
	for i := 0; i < s.index.Count; i++ {
		score, err := Cosine(q, s.index.Row(i))
		if err != nil {
			return nil, err
		}
		hits[i] = hit{row: i, score: score}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	k := s.topK
	if k > len(hits) {
		k = len(hits)
	}
	out := make([]rag.RankedChunk, k)
	for i := 0; i < k; i++ {
		out[i] = rag.RankedChunk{
			Chunk: s.manifest.Chunks[hits[i].row].Chunk(),
			Score: hits[i].score,
		}
	}
	return out, nil
}

// Handle holds the current store and allows it to be replaced while
// searches are in flight.
type Handle struct {
	current atomic.Pointer[Store]
}

// NewHandle returns a handle holding s, which may be nil.
func NewHandle(s *Store) *Handle {
	h := &Handle{}
	if s != nil {
		h.current.Store(s)
	}
	return h
}

// Store returns the current store or nil.
func (h *Handle) Store() *Store {
	return h.current.Load()
}

// Loaded reports whether a store is attached.
func (h *Handle) Loaded() bool {
	return h.current.Load() != nil
}

// Swap installs s and returns the previous store.
func (h *Handle) Swap(s *Store) *Store {
	return h.current.Swap(s)
}

// Reload loads fresh artifacts and swaps them in. On failure the current
// store is kept.
func (h *Handle) Reload(indexPath, storePath string, opts ...Option) (*Store, error) {
	s, err := Load(indexPath, storePath, opts...)
	if err != nil {
		return nil, err
	}
	h.current.Store(s)
	return s, nil
}

// Search delegates to the current store.
func (h *Handle) Search(ctx context.Context, question string) ([]rag.Chunk, error) {
	s := h.current.Load()
	if s == nil {
		return nil, ErrNotLoaded
	}
	return s.Search(ctx, question)
}

package retrieval

import (
	"context"
	"fmt"

	"github.com/upb/ragqa/internal/rag"
)

// TokenCounter counts tokens the way the generation model will.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// Assembler bounds retrieved context to a token budget.
type Assembler struct {
	counter TokenCounter
}

// NewAssembler creates an assembler using counter.
func NewAssembler(counter TokenCounter) *Assembler {
	return &Assembler{counter: counter}
}

// Bound returns the longest prefix of chunks whose summed token counts do
// not exceed maxTokens. It stops at the first chunk that does not fit, so a
// smaller chunk further down is never pulled forward. An oversized first
// chunk yields an empty result.
func (a *Assembler) Bound(ctx context.Context, chunks []rag.AnnotatedChunk, maxTokens int) ([]rag.AnnotatedChunk, error) {
	total := 0
	for i, c := range chunks {
		n, err := a.counter.CountTokens(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("count tokens for chunk %d: %w", i, err)
		}
		total += n
		if total > maxTokens {
			return chunks[:i:i], nil
		}
	}
	return chunks, nil
}

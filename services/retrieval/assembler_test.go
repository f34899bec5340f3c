package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/ragqa/internal/rag"
)

// wordCounter counts whitespace-separated words.
type wordCounter struct {
	err error
}

func (w wordCounter) CountTokens(_ context.Context, text string) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return len(strings.Fields(text)), nil
}

func chunksOfSizes(sizes ...int) []rag.AnnotatedChunk {
	out := make([]rag.AnnotatedChunk, len(sizes))
	for i, n := range sizes {
		text := strings.TrimSpace(strings.Repeat("tok ", n))
		out[i] = rag.Annotate(rag.Chunk{Text: text, Source: string(rune('a' + i))}, "")
	}
	return out
}

func sources(chunks []rag.AnnotatedChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Source
	}
	return out
}

func TestAssembler_Bound(t *testing.T) {
	tests := []struct {
		name   string
		sizes  []int
		budget int
		want   []string
	}{
		{"two fives with budget eight keeps the first", []int{5, 5}, 8, []string{"a"}},
		{"everything fits", []int{1, 2, 3}, 6, []string{"a", "b", "c"}},
		{"exact budget is allowed", []int{4, 4}, 8, []string{"a", "b"}},
		{"oversized first chunk yields empty", []int{10, 1}, 8, []string{}},
		{"smaller later chunk is not pulled forward", []int{3, 6, 1}, 8, []string{"a"}},
		{"no chunks", nil, 8, []string{}},
	}

	a := NewAssembler(wordCounter{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := chunksOfSizes(tt.sizes...)
			got, err := a.Bound(context.Background(), in, tt.budget)
			require.NoError(t, err)

			assert.Equal(t, tt.want, sources(got))

			total := 0
			for i, c := range got {
				n, _ := wordCounter{}.CountTokens(context.Background(), c.Text)
				total += n
				assert.Equal(t, in[i], c, "result must be a prefix of the input")
			}
			assert.LessOrEqual(t, total, tt.budget)
		})
	}
}

func TestAssembler_BoundCounterError(t *testing.T) {
	a := NewAssembler(wordCounter{err: errors.New("encoding missing")})

	_, err := a.Bound(context.Background(), chunksOfSizes(1), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding missing")
}

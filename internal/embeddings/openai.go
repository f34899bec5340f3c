// Package embeddings turns text into vectors for the similarity index.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	lcembeddings "github.com/tmc/langchaingo/embeddings"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-ada-002"

// Embedder is the embeddings capability. It matches langchaingo's
// embeddings.Embedder so either side can be plugged in.
type Embedder = lcembeddings.Embedder

var ErrEmptyText = errors.New("cannot embed empty text")

// Config configures the OpenAI embedder.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	model  string
	client openai.Client
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAI builds an embedder from cfg.
func NewOpenAI(cfg Config) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIEmbedder{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Model returns the embedding model identifier.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// EmbedDocuments embeds texts in a single request, preserving input order.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, ErrEmptyText
		}
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedder %q: %w", e.model, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder %q: received %d embeddings for %d texts", e.model, len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, x := range d.Embedding {
			vec[j] = float32(x)
		}
		out[i] = vec
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

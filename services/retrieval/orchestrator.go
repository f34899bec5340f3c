// Package retrieval turns a question into the bounded, annotated context
// the answer synthesizer works from.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/ragqa/config"
	"github.com/upb/ragqa/internal/rag"
	"github.com/upb/ragqa/services"
)

// DefaultMaxTokens is the context budget left after the prompt and the
// completion inside a 4k-token window.
const DefaultMaxTokens = 3375

// SimilarityIndex returns the chunks most similar to a question, best first.
type SimilarityIndex interface {
	Search(ctx context.Context, question string) ([]rag.Chunk, error)
}

// FailureRecorder counts absorbed retrieval faults.
type FailureRecorder interface {
	RecordRetrievalFailure(kind string)
}

// Options configures an Orchestrator.
type Options struct {
	// Debug logs every retrieved chunk at info level.
	Debug bool
	// Delimiter is appended to each chunk text. Defaults to config.DefaultDelimiter.
	Delimiter string
	// MaxTokens is the context budget. Defaults to DefaultMaxTokens.
	MaxTokens int
	// Failures is optional.
	Failures FailureRecorder
}

// Orchestrator runs search, annotation and token bounding for one question.
// Faults are logged and absorbed: callers always get a result, possibly
// empty.
type Orchestrator struct {
	index     SimilarityIndex
	assembler *Assembler
	logger    *zap.Logger
	opts      Options
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(index SimilarityIndex, assembler *Assembler, logger *zap.Logger, opts Options) *Orchestrator {
	if opts.Delimiter == "" {
		opts.Delimiter = config.DefaultDelimiter
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	return &Orchestrator{
		index:     index,
		assembler: assembler,
		logger:    logger,
		opts:      opts,
	}
}

// Retrieve blocks until the context for q is ready.
func (o *Orchestrator) Retrieve(ctx context.Context, q rag.Query) rag.RetrievalResult {
	return o.retrieve(ctx, q)
}

// RetrieveAsync starts retrieval in the background. The returned channel
// receives exactly one result and is then closed.
func (o *Orchestrator) RetrieveAsync(ctx context.Context, q rag.Query) <-chan rag.RetrievalResult {
	out := make(chan rag.RetrievalResult, 1)
	go func() {
		defer close(out)
		out <- o.retrieve(ctx, q)
	}()
	return out
}

func (o *Orchestrator) retrieve(ctx context.Context, q rag.Query) (result rag.RetrievalResult) {
	question := q.Question

	defer func() {
		if r := recover(); r != nil {
			o.fail(question, fmt.Sprintf("%T", r), fmt.Errorf("panic: %v", r))
			result = rag.RetrievalResult{}
		}
	}()

	if err := ctx.Err(); err != nil {
		o.fail(question, fmt.Sprintf("%T", err), err)
		return rag.RetrievalResult{}
	}

	chunks, err := o.index.Search(ctx, question)
	if err != nil {
		o.fail(question, fmt.Sprintf("%T", err), err)
		return rag.RetrievalResult{}
	}

	annotated := make([]rag.AnnotatedChunk, 0, len(chunks))
	for _, c := range chunks {
		a := rag.Annotate(c, o.opts.Delimiter)
		if o.opts.Debug {
			o.logger.Info("retrieved document",
				zap.String("question", question),
				zap.String("source", a.Source),
				zap.String("text", a.Text),
			)
		}
		annotated = append(annotated, a)
	}

	bounded, err := o.assembler.Bound(ctx, annotated, o.opts.MaxTokens)
	if err != nil {
		o.fail(question, fmt.Sprintf("%T", err), err)
		return rag.RetrievalResult{}
	}

	return rag.RetrievalResult{Chunks: bounded}
}

func (o *Orchestrator) fail(question, kind string, cause error) {
	err := services.NewRetrievalError(question, cause)
	o.logger.Error("error retrieving documents",
		zap.String("error_kind", kind),
		zap.String("question", question),
		zap.Error(err),
	)
	if o.opts.Failures != nil {
		o.opts.Failures.RecordRetrievalFailure(kind)
	}
}

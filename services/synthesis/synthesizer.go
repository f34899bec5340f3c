// Package synthesis asks the generation model to answer a question from the
// retrieved context and extracts the cited sources.
package synthesis

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/rag"
	"github.com/upb/ragqa/services"
	"github.com/upb/ragqa/services/providers"
)

// Options configures a Synthesizer.
type Options struct {
	// SystemPrompt must contain SummariesPlaceholder. Defaults to DefaultSystemPrompt.
	SystemPrompt string
}

// Synthesizer produces an answer and its sources for one question.
type Synthesizer struct {
	generator    providers.Generator
	logger       *zap.Logger
	systemPrompt string
}

// NewSynthesizer creates a synthesizer backed by gen.
func NewSynthesizer(gen providers.Generator, logger *zap.Logger, opts Options) *Synthesizer {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	return &Synthesizer{
		generator:    gen,
		logger:       logger,
		systemPrompt: opts.SystemPrompt,
	}
}

// Synthesize answers question using the retrieved context. history holds
// earlier turns and is passed to the model unchanged.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, result rag.RetrievalResult, history []rag.Message) (*rag.AnswerResult, error) {
	req := &providers.GenerateRequest{
		System:  RenderSystemPrompt(s.systemPrompt, result),
		History: toProviderMessages(history),
		User:    question,
	}

	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		s.logger.Error("generation failed",
			zap.String("question", question),
			zap.String("provider", s.generator.Name()),
			zap.Error(err),
		)
		return nil, services.NewGenerationError("generation model call failed", err).
			WithDetail("provider", s.generator.Name())
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		s.logger.Error("generation returned no answer", zap.String("question", question))
		return nil, services.ErrEmptyAnswer
	}

	answer, sources := ParseAnswer(resp.Text)
	s.logger.Debug("answer synthesized",
		zap.String("question", question),
		zap.Int("context_chunks", len(result.Chunks)),
		zap.Strings("sources", sources),
		zap.String("finish_reason", resp.FinishReason),
	)
	return &rag.AnswerResult{
		Answer:           answer,
		Sources:          sources,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

var sourcesMarker = regexp.MustCompile(`(?i)\bSOURCES?:`)

// ParseAnswer splits a completion into the answer text and the identifiers
// listed after its last "SOURCES:" marker. Only the rest of the marker's line
// holds identifiers, separated by commas. Without a marker the whole text is
// the answer and there are no sources.
func ParseAnswer(text string) (string, []string) {
	locs := sourcesMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(text), []string{}
	}
	last := locs[len(locs)-1]
	answer := strings.TrimSpace(text[:last[0]])
	line, _, _ := strings.Cut(text[last[1]:], "\n")

	sources := rag.DedupeSources(func(yield func(string)) {
		for _, id := range strings.Split(line, ",") {
			yield(strings.TrimSpace(id))
		}
	})
	return answer, sources
}

func toProviderMessages(history []rag.Message) []providers.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]providers.Message, len(history))
	for i, m := range history {
		out[i] = providers.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

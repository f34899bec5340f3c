// Package qa runs the question/answer cycle: retrieve, synthesize, record.
package qa

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/observability"
	"github.com/upb/ragqa/internal/rag"
	"github.com/upb/ragqa/models"
	"github.com/upb/ragqa/services"
)

// StoreStatus reports whether a chunk store is attached.
type StoreStatus interface {
	Loaded() bool
}

// Retriever produces bounded context for a question without blocking.
type Retriever interface {
	RetrieveAsync(ctx context.Context, q rag.Query) <-chan rag.RetrievalResult
}

// AnswerSynthesizer turns context into an answer.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, question string, result rag.RetrievalResult, history []rag.Message) (*rag.AnswerResult, error)
}

// InteractionLogger persists interactions on a best-effort basis.
type InteractionLogger interface {
	LogInteraction(i *models.Interaction) error
}

// Options holds the optional collaborators of a Service
type Options struct {
	// Model is recorded with each interaction.
	Model        string
	Metrics      *observability.Metrics
	Interactions InteractionLogger
}

// Service orchestrates one question/answer cycle
type Service struct {
	store        StoreStatus
	retriever    Retriever
	synthesizer  AnswerSynthesizer
	logger       *zap.Logger
	metrics      *observability.Metrics
	interactions InteractionLogger
	model        string
}

// NewService creates a new QA service
func NewService(store StoreStatus, retriever Retriever, synthesizer AnswerSynthesizer, logger *zap.Logger, opts Options) *Service {
	return &Service{
		store:        store,
		retriever:    retriever,
		synthesizer:  synthesizer,
		logger:       logger,
		metrics:      opts.Metrics,
		interactions: opts.Interactions,
		model:        opts.Model,
	}
}

// Ask answers one question. Retrieval faults degrade to an empty context;
// only validation, a missing store, cancellation and generation failures
// surface as errors.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	pc := &pipelineContext{
		Request:       req,
		InteractionID: uuid.New(),
		StartTime:     time.Now(),
	}
	id := zap.String("interaction_id", pc.InteractionID.String())

	s.logger.Debug("step 1: validating question", id)
	if strings.TrimSpace(req.Question) == "" {
		s.metrics.RecordAsk(observability.StatusValidation)
		return nil, services.ErrEmptyQuestion
	}

	s.logger.Debug("step 2: checking store", id)
	if s.store == nil || !s.store.Loaded() {
		return nil, s.fail(pc, services.ErrStoreNotLoaded)
	}

	s.logger.Debug("step 3: retrieving context", id)
	if err := s.retrieve(ctx, pc); err != nil {
		return nil, s.fail(pc, err)
	}

	if pc.Retrieved.Empty() {
		s.logger.Debug("no context retrieved, answering without rows", id)
	}
	s.logger.Debug("step 4: synthesizing answer", id,
		zap.Int("context_chunks", len(pc.Retrieved.Chunks)),
		zap.Strings("context_sources", pc.Retrieved.Sources()))
	synthStart := time.Now()
	answer, err := s.synthesizer.Synthesize(ctx, req.Question, pc.Retrieved, req.History)
	s.metrics.ObserveStage("synthesize", time.Since(synthStart))
	if err != nil {
		return nil, s.fail(pc, err)
	}
	pc.Answer = answer

	latency := time.Since(pc.StartTime)
	s.metrics.ObserveStage("total", latency)
	s.metrics.RecordTokens(answer.PromptTokens, answer.CompletionTokens)
	s.metrics.RecordAsk(observability.StatusSuccess)

	s.logger.Debug("step 5: recording interaction", id)
	s.record(pc, models.NewInteraction(pc.InteractionID, req.Question).
		WithAnswer(answer.Answer, answer.Sources).
		WithUsage(s.model, answer.PromptTokens, answer.CompletionTokens, int(latency.Milliseconds())))

	s.logger.Info("question answered",
		id,
		zap.String("request_id", req.RequestID),
		zap.Int("context_chunks", len(pc.Retrieved.Chunks)),
		zap.Strings("sources", answer.Sources),
		zap.Int64("latency_ms", latency.Milliseconds()))

	return &AskResponse{
		Answer:        answer.Answer,
		Sources:       answer.Sources,
		InteractionID: pc.InteractionID,
		ContextChunks: len(pc.Retrieved.Chunks),
		LatencyMs:     int(latency.Milliseconds()),
	}, nil
}

func (s *Service) retrieve(ctx context.Context, pc *pipelineContext) error {
	start := time.Now()
	defer func() { s.metrics.ObserveStage("retrieve", time.Since(start)) }()

	q := rag.Query{Question: pc.Request.Question, History: pc.Request.History}
	select {
	case result := <-s.retriever.RetrieveAsync(ctx, q):
		pc.Retrieved = result
		s.metrics.RecordContextChunks(len(result.Chunks))
		return nil
	case <-ctx.Done():
		return services.WrapInternal("request cancelled during retrieval", ctx.Err())
	}
}

// fail logs err, records metrics and a failed interaction, and returns err.
func (s *Service) fail(pc *pipelineContext, err error) error {
	status := observability.StatusError
	if services.IsStoreUnavailableError(err) {
		status = observability.StatusStoreUnavailable
	}
	s.metrics.RecordAsk(status)

	errType := string(services.GetErrorType(err))
	if errType == "" {
		errType = string(services.ErrorTypeInternal)
	}
	s.logger.Error("question failed",
		zap.String("interaction_id", pc.InteractionID.String()),
		zap.String("request_id", pc.Request.RequestID),
		zap.String("question", pc.Request.Question),
		zap.String("error_kind", errType),
		zap.Error(err))

	s.record(pc, models.NewInteraction(pc.InteractionID, pc.Request.Question).
		WithContext(len(pc.Retrieved.Chunks)).
		WithUsage(s.model, 0, 0, int(time.Since(pc.StartTime).Milliseconds())).
		WithError(errType, err.Error()))
	return err
}

func (s *Service) record(pc *pipelineContext, i *models.Interaction) {
	if s.interactions == nil {
		return
	}
	i.WithRequest(pc.Request.RequestID).WithContext(len(pc.Retrieved.Chunks))
	if err := s.interactions.LogInteraction(i); err != nil {
		s.logger.Debug("interaction not recorded",
			zap.String("interaction_id", i.ID.String()),
			zap.Error(err))
	}
}

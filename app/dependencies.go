package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/ragqa/config"
	"github.com/upb/ragqa/internal/embeddings"
	"github.com/upb/ragqa/internal/observability"
	"github.com/upb/ragqa/internal/tokenizer"
	"github.com/upb/ragqa/internal/vectorstore"
	"github.com/upb/ragqa/repositories/postgres"
	"github.com/upb/ragqa/services"
	"github.com/upb/ragqa/services/interactions"
	"github.com/upb/ragqa/services/providers"
	openaiprovider "github.com/upb/ragqa/services/providers/openai"
	"github.com/upb/ragqa/services/qa"
	"github.com/upb/ragqa/services/retrieval"
	"github.com/upb/ragqa/services/synthesis"
)

// Dependencies is the application context. It is built once per process
// and handed to the front doors.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Retrieval
	Embedder     embeddings.Embedder
	Store        *vectorstore.Handle
	TokenCounter retrieval.TokenCounter
	Orchestrator *retrieval.Orchestrator

	// Generation
	Generator   providers.Generator
	Synthesizer *synthesis.Synthesizer

	// Interaction log, nil unless enabled
	RepoFactory  *postgres.RepositoryFactory
	DB           *postgres.DB
	Interactions *interactions.Service

	QA *qa.Service

	storeMu  sync.RWMutex
	storeErr error
}

// Option replaces a collaborator that would otherwise be built from config.
type Option func(*Dependencies)

// WithEmbedder uses e instead of the OpenAI embedder.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(d *Dependencies) { d.Embedder = e }
}

// WithGenerator uses g instead of the OpenAI chat model.
func WithGenerator(g providers.Generator) Option {
	return func(d *Dependencies) { d.Generator = g }
}

// WithTokenCounter uses c instead of a tiktoken encoding.
func WithTokenCounter(c retrieval.TokenCounter) Option {
	return func(d *Dependencies) { d.TokenCounter = c }
}

// NewDependencies creates and wires up all application dependencies.
// A store that fails to load is recorded in StoreError and does not fail
// construction.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	for _, opt := range opts {
		opt(deps)
	}

	deps.initMetrics(cfg)

	if err := deps.initEmbedder(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	deps.initStore(cfg)

	if err := deps.initRetrieval(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize retrieval: %w", err)
	}

	if err := deps.initGeneration(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize generation: %w", err)
	}

	if err := deps.initInteractions(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize interaction log: %w", err)
	}

	deps.initQA(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("store_loaded", deps.Store.Loaded()),
		zap.Bool("interaction_log", deps.Interactions != nil))
	return deps, nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NewMetrics()
	}
}

func (d *Dependencies) initEmbedder(cfg *config.Config) error {
	if d.Embedder == nil {
		d.Embedder = embeddings.NewOpenAI(embeddings.Config{
			APIKey:     cfg.Providers.OpenAI.APIKey,
			BaseURL:    cfg.Providers.OpenAI.BaseURL,
			Model:      cfg.Providers.OpenAI.EmbeddingModel,
			MaxRetries: cfg.Providers.OpenAI.MaxRetries,
		})
	}
	if cfg.Store.QueryCacheSize <= 0 {
		return nil
	}

	cached, err := embeddings.NewCached(d.Embedder, cfg.Store.QueryCacheSize)
	if err != nil {
		return err
	}
	d.Embedder = cached
	return nil
}

func (d *Dependencies) storeOptions(cfg *config.Config) []vectorstore.Option {
	return []vectorstore.Option{
		vectorstore.WithEmbedder(d.Embedder),
		vectorstore.WithTopK(cfg.Retrieval.TopK),
	}
}

// initStore loads the persisted artifacts. Failure leaves the handle empty.
func (d *Dependencies) initStore(cfg *config.Config) {
	d.Store = vectorstore.NewHandle(nil)

	store, err := vectorstore.Load(cfg.Store.IndexPath, cfg.Store.StorePath, d.storeOptions(cfg)...)
	if err != nil {
		d.setStoreError(services.NewStoreLoadError(err))
		d.Logger.Error("failed to load vector store",
			zap.String("index_path", cfg.Store.IndexPath),
			zap.String("store_path", cfg.Store.StorePath),
			zap.Error(err))
		return
	}

	d.Store.Swap(store)
	d.checkEmbeddingModel(cfg, store)
	d.Logger.Info("vector store loaded",
		zap.Int("chunks", store.Len()),
		zap.Int("dim", store.Dim()),
		zap.String("embedding_model", store.EmbeddingModel()))
}

func (d *Dependencies) checkEmbeddingModel(cfg *config.Config, store *vectorstore.Store) {
	want := cfg.Providers.OpenAI.EmbeddingModel
	if store.EmbeddingModel() != "" && want != "" && store.EmbeddingModel() != want {
		d.Logger.Warn("store was built with a different embedding model",
			zap.String("store_model", store.EmbeddingModel()),
			zap.String("configured_model", want))
	}
}

func (d *Dependencies) initRetrieval(cfg *config.Config) error {
	if d.TokenCounter == nil {
		counter, err := tokenizer.New(cfg.TokenEncoding())
		if err != nil {
			return err
		}
		d.Logger.Info("token counter ready", zap.String("encoding", counter.Encoding()))
		d.TokenCounter = counter
	}

	opts := retrieval.Options{
		Debug:     cfg.Retrieval.Debug,
		Delimiter: cfg.Retrieval.Delimiter,
		MaxTokens: cfg.Retrieval.MaxContextTokens,
	}
	if d.Metrics != nil {
		opts.Failures = d.Metrics
	}
	d.Orchestrator = retrieval.NewOrchestrator(d.Store, retrieval.NewAssembler(d.TokenCounter), d.Logger, opts)
	return nil
}

func (d *Dependencies) initGeneration(cfg *config.Config) error {
	if d.Generator == nil {
		oc := cfg.Providers.OpenAI
		d.Generator = openaiprovider.NewOpenAIAdapter(providers.ProviderConfig{
			APIKey:      oc.APIKey,
			BaseURL:     oc.BaseURL,
			Timeout:     oc.Timeout,
			MaxRetries:  oc.MaxRetries,
			Model:       oc.ChatModel,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
		})
		d.Logger.Info("registered generation model",
			zap.String("provider", d.Generator.Name()),
			zap.String("model", oc.ChatModel))
	}

	prompt, err := synthesis.LoadSystemPrompt(cfg.Prompt.SystemPromptFile)
	if err != nil {
		return err
	}
	d.Synthesizer = synthesis.NewSynthesizer(d.Generator, d.Logger, synthesis.Options{SystemPrompt: prompt})
	return nil
}

func (d *Dependencies) initInteractions(ctx context.Context, cfg *config.Config) error {
	if !cfg.Interactions.Enabled {
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return err
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	var drops interactions.DropRecorder
	if d.Metrics != nil {
		drops = d.Metrics
	}
	svc := interactions.NewService(factory.NewRepositories().Interactions, d.Logger, interactions.Config{
		BufferSize:  cfg.Interactions.BufferSize,
		WorkerCount: cfg.Interactions.WorkerCount,
		RedactPII:   cfg.Interactions.RedactPII,
	}, drops)
	if err := svc.Start(); err != nil {
		_ = factory.Close()
		return err
	}
	d.Interactions = svc
	return nil
}

func (d *Dependencies) initQA(cfg *config.Config) {
	opts := qa.Options{
		Model:   cfg.Providers.OpenAI.ChatModel,
		Metrics: d.Metrics,
	}
	if d.Interactions != nil {
		opts.Interactions = d.Interactions
	}
	d.QA = qa.NewService(d.Store, d.Orchestrator, d.Synthesizer, d.Logger, opts)
}

// StoreError returns the last store load failure, or nil once a store is
// attached.
func (d *Dependencies) StoreError() error {
	d.storeMu.RLock()
	defer d.storeMu.RUnlock()
	return d.storeErr
}

func (d *Dependencies) setStoreError(err error) {
	d.storeMu.Lock()
	defer d.storeMu.Unlock()
	d.storeErr = err
}

// ReloadStore reloads the persisted artifacts and swaps them in. On failure
// the current store stays attached.
func (d *Dependencies) ReloadStore(ctx context.Context) (*vectorstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := d.Config
	store, err := d.Store.Reload(cfg.Store.IndexPath, cfg.Store.StorePath, d.storeOptions(cfg)...)
	d.Metrics.RecordStoreReload(err == nil)
	if err != nil {
		d.Logger.Error("store reload failed",
			zap.String("index_path", cfg.Store.IndexPath),
			zap.Error(err))
		loadErr := services.NewStoreLoadError(err)
		if !d.Store.Loaded() {
			d.setStoreError(loadErr)
		}
		return nil, loadErr
	}

	d.setStoreError(nil)
	d.checkEmbeddingModel(cfg, store)
	d.Logger.Info("vector store reloaded", zap.Int("chunks", store.Len()))
	return store, nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Interactions != nil {
		timeout := d.Config.Interactions.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < timeout {
				timeout = remaining
			}
		}
		if err := d.Interactions.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop interaction log: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

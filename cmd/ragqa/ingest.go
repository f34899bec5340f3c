package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/ragqa/config"
	"github.com/upb/ragqa/internal/embeddings"
	"github.com/upb/ragqa/internal/ingest"
)

type ingestFlags struct {
	dataDir   string
	indexPath string
	storePath string
	batchSize int
	normalize bool
}

func newIngestCmd(opts *globalOptions) *cobra.Command {
	flags := &ingestFlags{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the vector index from the CSV files in the data directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			flags.apply(cfg)

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			embedder := embeddings.NewOpenAI(embeddings.Config{
				APIKey:     cfg.Providers.OpenAI.APIKey,
				BaseURL:    cfg.Providers.OpenAI.BaseURL,
				Model:      cfg.Providers.OpenAI.EmbeddingModel,
				MaxRetries: cfg.Providers.OpenAI.MaxRetries,
			})
			return runIngest(ctx, cfg, embedder, flags.normalize, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.dataDir, "data-dir", "", "directory searched for CSV files (overrides DATA_DIR)")
	cmd.Flags().StringVar(&flags.indexPath, "index", "", "index artifact path (overrides INDEX_PATH)")
	cmd.Flags().StringVar(&flags.storePath, "store", "", "store artifact path (overrides STORE_PATH)")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "texts per embedding request (overrides EMBEDDING_BATCH_SIZE)")
	cmd.Flags().BoolVar(&flags.normalize, "normalize", false, "L2-normalize vectors before writing")
	return cmd
}

func (f *ingestFlags) apply(cfg *config.Config) {
	if f.dataDir != "" {
		cfg.Store.DataDir = f.dataDir
	}
	if f.indexPath != "" {
		cfg.Store.IndexPath = f.indexPath
	}
	if f.storePath != "" {
		cfg.Store.StorePath = f.storePath
	}
	if f.batchSize > 0 {
		cfg.Store.EmbeddingBatchSize = f.batchSize
	}
}

func runIngest(ctx context.Context, cfg *config.Config, embedder ingest.DocumentEmbedder, normalize bool, logger *zap.Logger, out io.Writer) error {
	ingestor := ingest.NewIngestor(embedder, logger, ingest.Options{
		BatchSize:      cfg.Store.EmbeddingBatchSize,
		EmbeddingModel: cfg.Providers.OpenAI.EmbeddingModel,
		Normalize:      normalize,
	})

	report, err := ingestor.Run(ctx, cfg.Store.DataDir, cfg.Store.IndexPath, cfg.Store.StorePath)
	if err != nil {
		logger.Error("ingestion failed", zap.String("data_dir", cfg.Store.DataDir), zap.Error(err))
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(out, "Indexed %d chunks from %d rows in %d files\n", report.Chunks, report.Rows, report.Files)
	for _, f := range report.SkippedFiles {
		fmt.Fprintf(out, "Skipped %s\n", f)
	}
	fmt.Fprintf(out, "Wrote %s and %s\n", cfg.Store.IndexPath, cfg.Store.StorePath)
	return nil
}

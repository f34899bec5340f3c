// Package ingest builds the vector store from CSV files.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"

	"github.com/upb/ragqa/internal/vectorstore"
)

// Defaults for splitting rows and embedding chunks.
const (
	DefaultChunkSize    = 1900
	DefaultChunkOverlap = 200
	DefaultBatchSize    = 100
)

// ErrNoChunks is returned when the data directory yields nothing to index.
var ErrNoChunks = errors.New("no chunks produced from data directory")

// DocumentEmbedder embeds a batch of texts, preserving order.
type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Options configures an Ingestor.
type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	BatchSize      int
	EmbeddingModel string
	Normalize      bool
}

// Report summarizes one ingestion run.
type Report struct {
	Files        int      `json:"files"`
	Rows         int      `json:"rows"`
	Chunks       int      `json:"chunks"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
}

// Ingestor reads CSV rows, splits them into chunks and embeds them.
type Ingestor struct {
	embedder DocumentEmbedder
	splitter textsplitter.TextSplitter
	logger   *zap.Logger
	opts     Options
}

// NewIngestor creates an ingestor. Zero option values take the defaults.
func NewIngestor(embedder DocumentEmbedder, logger *zap.Logger, opts Options) *Ingestor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Ingestor{
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(opts.ChunkSize),
			textsplitter.WithChunkOverlap(opts.ChunkOverlap),
			textsplitter.WithSeparators([]string{"\n", ""}),
		),
		logger: logger,
		opts:   opts,
	}
}

// Run ingests every CSV under dataDir and writes the index and store
// artifacts.
func (i *Ingestor) Run(ctx context.Context, dataDir, indexPath, storePath string) (*Report, error) {
	records, report, err := i.Collect(ctx, dataDir)
	if err != nil {
		return report, err
	}
	if len(records) == 0 {
		return report, ErrNoChunks
	}

	vectors, err := i.embed(ctx, records)
	if err != nil {
		return report, err
	}

	manifest := vectorstore.Manifest{
		EmbeddingModel: i.opts.EmbeddingModel,
		Normalized:     i.opts.Normalize,
		Chunks:         records,
	}
	if err := vectorstore.Write(indexPath, storePath, manifest, vectors); err != nil {
		return report, err
	}

	i.logger.Info("ingestion complete",
		zap.Int("files", report.Files),
		zap.Int("rows", report.Rows),
		zap.Int("chunks", report.Chunks),
		zap.Int("skipped_files", len(report.SkippedFiles)),
		zap.String("index_path", indexPath),
		zap.String("store_path", storePath),
	)
	return report, nil
}

// Collect reads and splits every CSV under dataDir without embedding.
// Unreadable files are logged and reported as skipped. Rows read before a
// parse error are kept.
func (i *Ingestor) Collect(ctx context.Context, dataDir string) ([]vectorstore.ChunkRecord, *Report, error) {
	report := &Report{}
	paths, err := findCSVFiles(dataDir)
	if err != nil {
		return nil, report, fmt.Errorf("scan %s: %w", dataDir, err)
	}

	var records []vectorstore.ChunkRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		fileRecords, rows, err := i.readFile(path)
		report.Rows += rows
		records = append(records, fileRecords...)
		if err != nil {
			i.logger.Error("error reading file",
				zap.String("path", path),
				zap.Int("rows_kept", rows),
				zap.Error(err))
			report.SkippedFiles = append(report.SkippedFiles, path)
			continue
		}
		report.Files++
	}
	report.Chunks = len(records)
	return records, report, nil
}

func (i *Ingestor) readFile(path string) ([]vectorstore.ChunkRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	var records []vectorstore.ChunkRecord
	rows := 0
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, rows, err
		}

		splits, err := i.splitter.SplitText(RowText(header, row))
		if err != nil {
			return records, rows, fmt.Errorf("split row %d: %w", rows+1, err)
		}
		rows++
		for idx, text := range splits {
			if strings.TrimSpace(text) == "" {
				continue
			}
			records = append(records, vectorstore.ChunkRecord{
				ID:     fmt.Sprintf("%s:%d:%d", path, rows, idx),
				Text:   text,
				Source: path,
				Metadata: map[string]string{
					"row":         strconv.Itoa(rows),
					"chunk_index": strconv.Itoa(idx),
				},
			})
		}
	}
	return records, rows, nil
}

func (i *Ingestor) embed(ctx context.Context, records []vectorstore.ChunkRecord) ([][]float32, error) {
	vectors := make([][]float32, 0, len(records))
	for start := 0; start < len(records); start += i.opts.BatchSize {
		end := start + i.opts.BatchSize
		if end > len(records) {
			end = len(records)
		}
		texts := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			texts = append(texts, r.Text)
		}

		batch, err := i.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed chunks %d-%d: received %d embeddings", start, end, len(batch))
		}
		vectors = append(vectors, batch...)

		i.logger.Debug("embedded batch", zap.Int("start", start), zap.Int("end", end))
	}
	return vectors, nil
}

// RowText renders a CSV row as "column: value" pairs in header order.
func RowText(header, row []string) string {
	parts := make([]string, len(header))
	for idx, k := range header {
		v := ""
		if idx < len(row) {
			v = row[idx]
		}
		parts[idx] = k + ": " + v
	}
	return strings.Join(parts, " ")
}

func findCSVFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// Package vectorstore persists chunk embeddings and answers nearest-neighbour
// queries over them.
//
// A store is two artifacts on disk: a binary index holding one float32 row
// per chunk, and a JSON manifest holding the chunks themselves in row order.
// Both are written by the ingest command and loaded once at startup.
package vectorstore

import "github.com/upb/ragqa/internal/rag"

const (
	// IndexVersion is the on-disk format version of both artifacts.
	IndexVersion = 1

	// DefaultTopK matches the number of documents the retriever returns
	// unless configured otherwise.
	DefaultTopK = 4

	indexMagic      = "RQIX"
	indexHeaderSize = 16
)

// Manifest is the JSON store artifact.
type Manifest struct {
	IndexVersion   int           `json:"index_version"`
	CreatedAt      string        `json:"created_at"`
	EmbeddingModel string        `json:"embedding_model"`
	Dim            int           `json:"dim"`
	Normalized     bool          `json:"normalized"`
	Chunks         []ChunkRecord `json:"chunks"`
}

// ChunkRecord is one chunk as persisted. Row i of the index is the
// embedding of Chunks[i].
type ChunkRecord struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Chunk converts the record to the pipeline type.
func (r ChunkRecord) Chunk() rag.Chunk {
	var meta map[string]string
	if len(r.Metadata) > 0 {
		meta = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
	}
	return rag.Chunk{Text: r.Text, Source: r.Source, Metadata: meta}
}

// Index is the binary vector artifact: Count rows of Dim float32 values.
type Index struct {
	Version int
	Dim     int
	Count   int
	Vectors []float32
}

// Row returns the i-th embedding without copying.
func (ix *Index) Row(i int) []float32 {
	return ix.Vectors[i*ix.Dim : (i+1)*ix.Dim]
}
